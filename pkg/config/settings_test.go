package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, BackendGorm, c.Store.Backend)
	assert.Equal(t, DriverSqlite, c.DB.Driver)
	assert.Equal(t, "solo.db", c.DB.Path)
	assert.Equal(t, IDGenUUID, c.IDGen.Provider)
	assert.Equal(t, 6379, c.RedisDB.Port)
}

func TestLoadConfig_FileAndEnvExpansion(t *testing.T) {
	t.Setenv("SOLO_TEST_DB_PASSWORD", "s3cret")

	content := `
store:
  backend: gorm
db:
  driver: mysql
  host: 10.0.0.8
  port: 3306
  user: solo
  password: ${SOLO_TEST_DB_PASSWORD}
  dbname: solo_blog
idgen:
  provider: wuid
  key: blog:article:id
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, InitConfig(path))
	c := ServiceConf

	assert.Equal(t, DriverMysql, c.DB.Driver)
	assert.Equal(t, "10.0.0.8", c.DB.Host)
	assert.Equal(t, 3306, c.DB.Port)
	assert.Equal(t, "s3cret", c.DB.Password)
	assert.Equal(t, "solo_blog", c.DB.DbName)
	assert.Equal(t, IDGenWUID, c.IDGen.Provider)
	assert.Equal(t, "blog:article:id", c.IDGen.Key)
	// 未配置的字段保留默认值
	assert.Equal(t, "solo-article", c.IDGen.Name)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
