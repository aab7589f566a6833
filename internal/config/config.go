package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	GoEnv   string // dev/prod
	BaseURL string // dev用のフロントURL（success/cancelリダイレクト先）
	PubURL  string // prod用の公開URL

	StripeSecretKey     string // Stripe APIキー
	StripeWebhookSecret string // Webhook署名シークレット（未設定は初回利用時に500）

	SanityProjectID  string // コンテンツストアのプロジェクトID
	SanityDataset    string // データセット名
	SanityAPIToken   string // 書き込みトークン
	SanityAPIVersion string // APIバージョン（省略時デフォルト）

	HTTPTimeout time.Duration // 外部呼び出しのタイムアウト
}

// FrontendBaseURL はリダイレクト先のベースURL（prodはPUBLIC_URL優先）。
func (c Config) FrontendBaseURL() string {
	if c.GoEnv == "production" && c.PubURL != "" {
		return c.PubURL
	}
	return c.BaseURL
}

// Loadは環境変数
func Load() (Config, error) {
	timeout, err := durationOr("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		GoEnv:   os.Getenv("GO_ENV"),
		BaseURL: os.Getenv("BASE_URL"),
		PubURL:  os.Getenv("PUBLIC_URL"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		SanityProjectID:  os.Getenv("SANITY_PROJECT_ID"),
		SanityDataset:    os.Getenv("SANITY_DATASET"),
		SanityAPIToken:   os.Getenv("SANITY_API_TOKEN"),
		SanityAPIVersion: os.Getenv("SANITY_API_VERSION"),

		HTTPTimeout: timeout,
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.BaseURL == "" {
		return Config{}, fmt.Errorf("BASE_URL is required")
	}
	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.SanityProjectID == "" {
		return Config{}, fmt.Errorf("SANITY_PROJECT_ID is required")
	}
	if cfg.SanityDataset == "" {
		return Config{}, fmt.Errorf("SANITY_DATASET is required")
	}
	if cfg.SanityAPIToken == "" {
		return Config{}, fmt.Errorf("SANITY_API_TOKEN is required")
	}

	return cfg, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number (seconds): %w", key, err)
	}
	return time.Duration(sec) * time.Second, nil
}
