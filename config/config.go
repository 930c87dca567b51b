package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env        string
	LogLevel   string
	Port       string
	DBURL      string
	CORSOrigin string
	JWTSecret  string

	// PublicBaseURL is where the gateway reaches us (callback/return URLs).
	PublicBaseURL   string
	DonorSuccessURL string
	DonorFailureURL string
	DonorPendingURL string

	DefaultGateway string
	PayU           PayU
	Stripe         Stripe

	SMTP     SMTP
	WhatsApp WhatsApp

	OrgName           string
	OrgPAN            string
	Org80GRegNo       string
	TaxExemptionNote  string
	AdminEmails       []string
	AnonymousEmail    string
	MaxDonationAmount decimal.Decimal

	RabbitMQURL      string
	RabbitMQExchange string

	RedisURL           string
	RateLimitPrefix    string
	RateLimitPerMinute int

	GatewayLookupTimeout time.Duration
	SideEffectTimeout    time.Duration

	ReconcileSchedule  string
	ReconcileMinAge    time.Duration
	ReconcileBatchSize int
}

type PayU struct {
	Key         string
	Salt        string
	CheckoutURL string
	VerifyURL   string
}

type Stripe struct {
	SecretKey     string
	WebhookSecret string
}

type SMTP struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type WhatsApp struct {
	APIURL        string
	Token         string
	PhoneNumberID string
	StaffNumbers  []string
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	cfg := Config{
		Env:        getEnv("APP_ENV", "local"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Port:       getEnv("PORT", "8080"),
		DBURL:      getEnv("DB_URL", ""),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		JWTSecret:  getEnv("JWT_SECRET", ""),

		PublicBaseURL:   strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		DonorSuccessURL: getEnv("DONOR_SUCCESS_URL", "http://localhost:5173/donate/success"),
		DonorFailureURL: getEnv("DONOR_FAILURE_URL", "http://localhost:5173/donate/failure"),
		DonorPendingURL: getEnv("DONOR_PENDING_URL", "http://localhost:5173/donate/processing"),

		DefaultGateway: strings.ToLower(getEnv("PAYMENT_GATEWAY", "payu")),
		PayU: PayU{
			Key:         getEnv("PAYU_KEY", ""),
			Salt:        getEnv("PAYU_SALT", ""),
			CheckoutURL: getEnv("PAYU_CHECKOUT_URL", "https://test.payu.in/_payment"),
			VerifyURL:   getEnv("PAYU_VERIFY_URL", "https://test.payu.in/merchant/postservice?form=2"),
		},
		Stripe: Stripe{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},

		SMTP: SMTP{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		WhatsApp: WhatsApp{
			APIURL:        strings.TrimSuffix(getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"), "/"),
			Token:         getEnv("WHATSAPP_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			StaffNumbers:  splitList(getEnv("STAFF_WHATSAPP_NUMBERS", "")),
		},

		OrgName:          getEnv("ORG_NAME", "Our Foundation"),
		OrgPAN:           getEnv("ORG_PAN", ""),
		Org80GRegNo:      getEnv("ORG_80G_REG_NO", ""),
		TaxExemptionNote: getEnv("TAX_EXEMPTION_NOTE", "Donations are eligible for tax exemption under section 80G of the Income Tax Act."),
		AdminEmails:      splitList(getEnv("ADMIN_EMAILS", "")),
		AnonymousEmail:   getEnv("ANONYMOUS_DONOR_EMAIL", "anonymous@donations.invalid"),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "donation_events"),

		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitPrefix:    getEnv("RATE_LIMIT_PREFIX", "donations:rate_limit"),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 60),

		GatewayLookupTimeout: getDuration("GATEWAY_LOOKUP_TIMEOUT", 10*time.Second),
		SideEffectTimeout:    getDuration("SIDE_EFFECT_TIMEOUT", 30*time.Second),

		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", "@every 5m"),
		ReconcileMinAge:    getDuration("RECONCILE_MIN_AGE", 15*time.Minute),
		ReconcileBatchSize: getInt("RECONCILE_BATCH_SIZE", 50),
	}

	maxAmount, err := decimal.NewFromString(getEnv("MAX_DONATION_AMOUNT", "10000000"))
	if err != nil || !maxAmount.IsPositive() {
		return Config{}, fmt.Errorf("invalid MAX_DONATION_AMOUNT")
	}
	cfg.MaxDonationAmount = maxAmount

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.DBURL == "" {
		missing = append(missing, "DB_URL")
	}
	switch c.DefaultGateway {
	case "payu":
		if c.PayU.Key == "" {
			missing = append(missing, "PAYU_KEY")
		}
		if c.PayU.Salt == "" {
			missing = append(missing, "PAYU_SALT")
		}
	case "stripe":
		if c.Stripe.SecretKey == "" {
			missing = append(missing, "STRIPE_SECRET_KEY")
		}
		if c.Stripe.WebhookSecret == "" {
			missing = append(missing, "STRIPE_WEBHOOK_SECRET")
		}
	default:
		return fmt.Errorf("unsupported PAYMENT_GATEWAY %q", c.DefaultGateway)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using default %s", key, raw, fallback)
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
