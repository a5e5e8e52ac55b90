package dsn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paneelbeheer/paneelbeheer/internal/config"
	"github.com/paneelbeheer/paneelbeheer/internal/db/dsn"
)

func TestCreate(t *testing.T) {
	testCases := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "sqlite uses the file path",
			cfg: config.Config{
				DB: config.DB{Engine: config.EngineSQLite, Path: "./data/paneelbeheer.db"},
			},
			want: "./data/paneelbeheer.db",
		},
		{
			name: "mysql builds a tcp dsn",
			cfg: config.Config{
				DB: config.DB{
					Engine:   config.EngineMySQL,
					User:     "panel",
					Password: "secret",
					Host:     "db.local",
					Port:     3306,
					Name:     "paneelbeheer",
					Extras:   "parseTime=true",
				},
			},
			want: "panel:secret@tcp(db.local:3306)/paneelbeheer?parseTime=true",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dsn.Create(&tc.cfg))
		})
	}
}
