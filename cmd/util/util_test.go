package util

import (
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dTxn/lib/txn"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d: %q", Wrap, line)
		}
	}
	if WrapString("") != "" {
		t.Errorf("expected empty output for empty input")
	}
}

func TestClientConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test"}
	SetupClientFlags(cmd)
	if err := cmd.PersistentFlags().Parse([]string{
		"--endpoints", "http://a:5984,http://b:5984",
		"--db", "orders",
		"--max-tries", "7",
		"--delay", "5ms",
		"--create",
	}); err != nil {
		t.Fatal(err)
	}
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		t.Fatal(err)
	}

	conf := GetClientConfig()
	if len(conf.Endpoints) != 2 || conf.Endpoints[1] != "http://b:5984" {
		t.Errorf("unexpected endpoints %v", conf.Endpoints)
	}
	if conf.RetryCount != 3 || conf.TimeoutSecond != 10 {
		t.Errorf("expected defaults, got %+v", conf)
	}

	cfg := txn.DefaultConfig().With(GetTxnOptions()...)
	if cfg.DB != "orders" || cfg.Couch != "/" {
		t.Errorf("unexpected addressing %q %q", cfg.Couch, cfg.DB)
	}
	if cfg.MaxTries != 7 || cfg.Delay != 5*time.Millisecond || !cfg.Create {
		t.Errorf("unexpected transaction options %+v", cfg)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("expected default timeout, got %s", cfg.Timeout)
	}

	loc, err := txn.Resolve(txn.Request{ID: "a/b"}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if loc.URI != "/orders/a%2Fb" {
		t.Errorf("expected a relative uri, got %s", loc.URI)
	}
}
