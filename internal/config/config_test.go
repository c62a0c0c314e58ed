package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(`
catalog:
  path: /var/lib/custodian/catalog.db
  integrity_policy: strict
identity:
  user: examiner@example.test
  device: field-laptop-3
environment:
  app_version: 2.1.0
  timezone: Europe/Berlin
backup:
  kind: minio
  minio:
    endpoint: localhost:9000
    access_key: minio
    secret_key: minio123
    bucket: evidence-mirror
sync:
  concurrency: 8
watch:
  dir: /home/examiner/Desktop
  interval: 500ms
  patterns: ["Screenshot*.png"]
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/custodian/catalog.db", cfg.Catalog.Path)
	assert.Equal(t, "strict", cfg.Catalog.IntegrityPolicy)
	assert.Equal(t, "examiner@example.test", cfg.Identity.User)
	assert.Equal(t, "field-laptop-3", cfg.Identity.Device)
	assert.Equal(t, "2.1.0", cfg.Environment.AppVersion)
	assert.Equal(t, BackupMinio, cfg.Backup.Kind)
	assert.Equal(t, "localhost:9000", cfg.Backup.Minio.Endpoint)
	assert.Equal(t, "evidence-mirror", cfg.Backup.Minio.Bucket)
	assert.False(t, cfg.Backup.Minio.UseSSL)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Interval)
	assert.Equal(t, []string{"Screenshot*.png"}, cfg.Watch.Patterns)
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def, cfg)
	assert.Equal(t, "warn", cfg.Catalog.IntegrityPolicy)
	assert.Equal(t, BackupNone, cfg.Backup.Kind)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Watch.Interval)
	assert.Equal(t, "catalog.db", filepath.Base(cfg.Catalog.Path))
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := map[string]string{
		"unknown section":  "catalgo:\n  path: x\n",
		"unknown key":      "catalog:\n  pth: x\n",
		"bad policy":       "catalog:\n  integrity_policy: lenient\n",
		"bad backup kind":  "backup:\n  kind: ftp\n",
		"bad bucket":       "backup:\n  minio:\n    bucket: Evidence_Bucket\n",
		"concurrency zero": "sync:\n  concurrency: 0\n",
		"bad interval":     "watch:\n  interval: soon\n",
		"wrong type":       "sync:\n  concurrency: many\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParse_CrossFieldRules(t *testing.T) {
	_, err := Parse([]byte("backup:\n  kind: dir\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("backup:\n  kind: minio\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("watch:\n  patterns: [\"[\"]\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	cfg, err := Parse([]byte("backup:\n  kind: dir\n  dir: /mnt/mirror\n"))
	require.NoError(t, err)
	assert.Equal(t, "/mnt/mirror", cfg.Backup.Dir)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custodian.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  concurrency: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Sync.Concurrency)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
