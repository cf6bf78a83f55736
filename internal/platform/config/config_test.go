package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefaults() {
	v, err := NewViper("")
	s.Require().NoError(err)

	cfg, err := Load(v)
	s.Require().NoError(err)
	s.Equal(":8080", cfg.Server.Addr)
	s.Equal(16, cfg.OAuth.AuthCodeBytes)
	s.Equal(256, cfg.OAuth.AccessTokenBytes)
	s.Equal(10*time.Minute, cfg.OAuth.AuthCodeTTL)
	s.Equal(5*time.Second, cfg.OAuth.StoreTimeout)
	s.Equal(30*time.Second, cfg.Server.RequestTimeout)
	s.Greater(cfg.Server.WriteTimeout, cfg.Server.RequestTimeout)
	s.Empty(cfg.Database.URL)
	s.Empty(cfg.Redis.URL)
	s.Empty(cfg.Audit.KafkaBrokers)
}

func (s *ConfigSuite) TestEnvironmentOverrides() {
	s.T().Setenv("STRIDE_SERVER_ADDR", ":9090")
	s.T().Setenv("STRIDE_OAUTH_AUTH_CODE_TTL", "2m")
	s.T().Setenv("STRIDE_AUDIT_KAFKA_BROKERS", "k1:9092, k2:9092")

	v, err := NewViper("")
	s.Require().NoError(err)
	cfg, err := Load(v)
	s.Require().NoError(err)

	s.Equal(":9090", cfg.Server.Addr)
	s.Equal(2*time.Minute, cfg.OAuth.AuthCodeTTL)
	s.Equal([]string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
}

func (s *ConfigSuite) TestConfigFile() {
	path := filepath.Join(s.T().TempDir(), "stride.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("oauth:\n  access_token_bytes: 64\nlog:\n  format: text\n"), 0o600))

	v, err := NewViper(path)
	s.Require().NoError(err)
	cfg, err := Load(v)
	s.Require().NoError(err)
	s.Equal(64, cfg.OAuth.AccessTokenBytes)
	s.Equal("text", cfg.Log.Format)
}

func (s *ConfigSuite) TestValidation() {
	s.Run("short codes are rejected", func() {
		v, err := NewViper("")
		s.Require().NoError(err)
		v.Set("oauth.auth_code_bytes", 8)
		_, err = Load(v)
		s.ErrorContains(err, "oauth.auth_code_bytes")
	})

	s.Run("codes wider than their column are rejected", func() {
		v, err := NewViper("")
		s.Require().NoError(err)
		v.Set("oauth.auth_code_bytes", 192)
		_, err = Load(v)
		s.ErrorContains(err, "oauth.auth_code_bytes must be at most 191")

		v.Set("oauth.auth_code_bytes", 191)
		_, err = Load(v)
		s.NoError(err)
	})

	s.Run("tokens wider than their column are rejected", func() {
		s.T().Setenv("STRIDE_OAUTH_ACCESS_TOKEN_BYTES", "400")
		v, err := NewViper("")
		s.Require().NoError(err)
		_, err = Load(v)
		s.ErrorContains(err, "oauth.access_token_bytes must be at most 384")

		v.Set("oauth.access_token_bytes", 384)
		_, err = Load(v)
		s.NoError(err)
	})

	s.Run("unknown log format is rejected", func() {
		v, err := NewViper("")
		s.Require().NoError(err)
		v.Set("log.format", "xml")
		_, err = Load(v)
		s.ErrorContains(err, "log.format")
	})

	s.Run("write timeout must outlast request timeout", func() {
		v, err := NewViper("")
		s.Require().NoError(err)
		v.Set("server.request_timeout", "30s")
		v.Set("server.write_timeout", "10s")
		_, err = Load(v)
		s.ErrorContains(err, "server.write_timeout")
	})

	s.Run("missing config file is an error", func() {
		_, err := NewViper(filepath.Join(s.T().TempDir(), "missing.yaml"))
		s.Error(err)
	})
}
