package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

var maxTenants int = 50
var productsPerTenant int = 20
var httpHostPort string = "127.0.0.1:1080"

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))

func main() {
	tenantIDs := make([]string, maxTenants)
	for i := range maxTenants {
		tenantIDs[i] = uuid.NewString()
	}
	fmt.Printf("generated %v tenant IDs\n", maxTenants)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		log.Fatal("Failed to connect to HTTP server:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatal("HTTP server not available")
	}

	fmt.Printf("http server verified\n")

	var startTime time.Time
	var usedTime time.Duration

	startTime = time.Now()
	wg := sync.WaitGroup{}
	for i := range maxTenants {
		wg.Add(1)
		go func() {
			seedTenant(tenantIDs[i])
			fmt.Printf("\rseeded tenant %v", i)
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	seededActions := maxTenants * (productsPerTenant + 2)
	fmt.Printf(
		"\rseeded %v tenants (%v requests): used time=%v seconds, throughput=%v action/second\n",
		maxTenants, seededActions, usedTime.Seconds(), float64(seededActions)/usedTime.Seconds(),
	)

	startTime = time.Now()
	wg = sync.WaitGroup{}
	for i := range maxTenants {
		wg.Add(1)
		go func() {
			doAction(tenantIDs[i])
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\n\rdid actions for %v tenants: used time=%v seconds, throughput=%v action/second\n",
		maxTenants, usedTime.Seconds(), float64(maxTenants*3)/usedTime.Seconds(),
	)
}

func rndFloat64(min, max float64, decimal int) float64 {
	val := min + rnd.Float64()*(max-min)
	multiplier := float64(math.Pow10(decimal))
	return float64(math.Round(float64(val)*float64(multiplier))) / multiplier
}

func postJSON(path string, payload any) {
	jsonData, _ := json.Marshal(payload)
	resp, err := http.Post(fmt.Sprintf("http://%s%s", httpHostPort, path), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		fmt.Printf("\nerror: %v\n", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		fmt.Printf("\nresponse status code >= 300 for %v: %v\n", path, resp.StatusCode)
	}
}

func seedTenant(tenantID string) {
	postJSON("/tenants/"+tenantID+"/rules", map[string]any{
		"name":                  "low stock watch",
		"rule_type":             "stock_low",
		"threshold_operator":    "lte",
		"threshold_value":       10.0,
		"priority":              "medium",
		"notification_channels": []string{"dashboard"},
		"is_active":             true,
	})
	postJSON("/tenants/"+tenantID+"/rules", map[string]any{
		"name":                  "stockout watch",
		"rule_type":             "stockout",
		"threshold_operator":    "lte",
		"threshold_value":       0.0,
		"priority":              "critical",
		"notification_channels": []string{"dashboard"},
		"is_active":             true,
	})
	for i := range productsPerTenant {
		upsertProduct(tenantID, fmt.Sprintf("P%04d", i))
	}
}

func upsertProduct(tenantID string, code string) {
	postJSON("/tenants/"+tenantID+"/products", map[string]any{
		"code":               code,
		"name":               "product " + code,
		"category":           "generic",
		"current_quantity":   rndFloat64(0.0, 50.0, 0),
		"critical_threshold": 5.0,
		"low_threshold":      10.0,
		"unit_price":         rndFloat64(0.5, 20.0, 2),
	})
}

func doAction(tenantID string) {
	actions := []func(){
		genUpsertProductAction(tenantID),
		genGetAlertsAction(tenantID),
		genEvaluateAction(tenantID),
	}
	actionNames := []string{
		"UpsertProduct",
		"GetAlerts",
		"Evaluate",
	}
	rnd.Shuffle(len(actions), func(i, j int) {
		actions[i], actions[j] = actions[j], actions[i]
		actionNames[i], actionNames[j] = actionNames[j], actionNames[i]
	})
	for index, action := range actions {
		action()
		fmt.Printf("\rexecuted action %v for tenant %v", actionNames[index], tenantID)
		time.Sleep(time.Duration(100+rnd.Int31n(1000)) * time.Millisecond)
	}
}

func genUpsertProductAction(tenantID string) func() {
	return func() {
		upsertProduct(tenantID, fmt.Sprintf("P%04d", rnd.Int31n(int32(productsPerTenant))))
	}
}

func genEvaluateAction(tenantID string) func() {
	return func() {
		postJSON("/tenants/"+tenantID+"/alerts/evaluate", map[string]any{})
	}
}

func genGetAlertsAction(tenantID string) func() {
	return func() {
		resp, err := http.Get(fmt.Sprintf("http://%s/tenants/%s/alerts", httpHostPort, tenantID))
		if err != nil {
			fmt.Printf("\nerror: %v\n", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("\nresponse status code != 200: %v\n", resp.StatusCode)
		}
	}
}
