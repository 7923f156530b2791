package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyPharmaDBType string = "PHARMA_DB_TYPE"
	EnvKeyPharmaDbPath string = "PHARMA_DB_PATH"

	EnvKeyPharmaHttpHostPort string = "PHARMA_HTTP_HOST_PORT"

	EnvKeyPharmaDefaultRate  string = "PHARMA_DEFAULT_RATE"
	EnvKeyPharmaDefaultBurst string = "PHARMA_DEFAULT_BURST"

	EnvKeySMTPHostPort    string = "PHARMA_SMTP_HOST_PORT"
	EnvKeySMTPSender      string = "PHARMA_SMTP_SENDER"
	EnvKeySMSGatewayURL   string = "PHARMA_SMS_GATEWAY_URL"
	EnvKeySMSGatewayToken string = "PHARMA_SMS_GATEWAY_TOKEN"
	EnvKeyWhatsAppAPIURL  string = "PHARMA_WHATSAPP_API_URL"
	EnvKeyWhatsAppToken   string = "PHARMA_WHATSAPP_TOKEN"

	LoggerNameAlertingCore  string = "alerting_core"
	LoggerNameRestfulServer string = "restful_server"
	LoggerNameScheduler     string = "scheduler"
	LoggerNameNotify        string = "notify"

	LoggerFieldCategory string = "category"

	LoggerCategoryRule       string = "rule"
	LoggerCategoryEvaluator  string = "evaluator"
	LoggerCategoryLifecycle  string = "lifecycle"
	LoggerCategoryDispatcher string = "dispatcher"
	LoggerCategoryQuery      string = "query"
	LoggerCategorySettings   string = "settings"
	LoggerCategoryProduct    string = "product"
)
