package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "postgres",
			cfg:  Config{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "records", SSLMode: "disable"},
			want: "host=db port=5432 user=u password=p dbname=records sslmode=disable TimeZone=UTC",
		},
		{
			name: "mysql",
			cfg:  Config{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", DBName: "records"},
			want: "u:p@tcp(db:3306)/records?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name: "sqlite",
			cfg:  Config{Driver: "sqlite", FilePath: "/tmp/records.db"},
			want: "/tmp/records.db",
		},
		{
			name:    "unsupported",
			cfg:     Config{Driver: "oracle"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSQLite(t *testing.T) {
	db, err := New(&Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	defer Close(db)

	type probe struct {
		ID   uint
		Name string
	}
	require.NoError(t, AutoMigrate(db, &probe{}))
	require.NoError(t, db.Create(&probe{Name: "x"}).Error)

	var count int64
	require.NoError(t, db.Model(&probe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
