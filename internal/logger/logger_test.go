package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"
)

func TestNewSetsGlobalLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"debug":    zerolog.DebugLevel,
		"Warn":     zerolog.WarnLevel,
		" ERROR ":  zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	}

	for input, want := range cases {
		t.Run("level_"+strings.TrimSpace(input), func(t *testing.T) {
			prev := zerolog.GlobalLevel()
			t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

			var buf bytes.Buffer
			_, err := New("production", input, &buf)
			be.Err(t, err, nil)
			be.Equal(t, zerolog.GlobalLevel(), want)
		})
	}
}

func TestNewInvalidLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	_, err := New("production", "not-a-level")
	be.Err(t, err)
}

func TestNewWritesJSON(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	log, err := New("production", "info", &buf)
	be.Err(t, err, nil)

	log.Debug().Msg("hidden")
	log.Info().Str("method", "readSms").Msg("request dispatched")

	out := buf.String()
	be.Equal(t, strings.Contains(out, "hidden"), false)
	be.True(t, strings.Contains(out, `"method":"readSms"`))
	be.True(t, strings.Contains(out, `"message":"request dispatched"`))
}

func TestIsDevelopment(t *testing.T) {
	be.True(t, IsDevelopment("dev"))
	be.True(t, IsDevelopment(" Development "))
	be.Equal(t, IsDevelopment("production"), false)
}
