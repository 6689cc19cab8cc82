package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/entitlement-engine/internal/domain/user"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
	"github.com/yungbote/entitlement-engine/internal/services"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadCatalogDefaults(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, int64(45000), cat.Packs[user.PackExpert].Amount)
	assert.Equal(t, "XOF", cat.Packs[user.PackMaster].Currency)
	assert.Equal(t, services.DefaultQuizConfig(), cat.QuizConfig())
}

func TestLoadCatalogOverrides(t *testing.T) {
	path := writeCatalog(t, `
packs:
  expert:
    amount: 50000
    currency: xof
issuer:
  name: Academie Nord
  tax_id: SN-123
instructor: A. Diallo
quiz:
  lesson_threshold: 0.9
`)
	cat, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, services.PackPrice{Amount: 50000, Currency: "XOF"}, cat.Packs[user.PackExpert])
	assert.Equal(t, int64(25000), cat.Packs[user.PackEssentiel].Amount)
	assert.Equal(t, "Academie Nord", cat.Issuer.Name)
	assert.Equal(t, "SN-123", cat.Issuer.TaxID)
	assert.Equal(t, "A. Diallo", cat.Instructor)
	assert.Equal(t, 0.9, cat.QuizConfig().LessonThreshold)
	assert.Equal(t, services.DefaultQuizConfig().AttemptThreshold, cat.QuizConfig().AttemptThreshold)
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown pack": "packs:\n  platinum:\n    amount: 1\n    currency: XOF\n",
		"zero amount":  "packs:\n  expert:\n    amount: 0\n    currency: XOF\n",
		"no currency":  "packs:\n  expert:\n    amount: 100\n",
		"malformed":    "packs: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(writeCatalog(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := LoadConfig(logger.Nop())
	assert.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ENGINE_CATALOG_FILE", "")
	t.Setenv("LESSON_QUIZ_PASS_THRESHOLD", "0.85")
	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Catalog.QuizConfig().LessonThreshold)
	assert.Equal(t, services.DefaultQuizConfig().AttemptThreshold, cfg.Catalog.QuizConfig().AttemptThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "s3cret", cfg.JWTSecretKey)
}
