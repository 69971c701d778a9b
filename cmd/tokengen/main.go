// Command tokengen mints owner tokens for the LinkPulse API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sifan077/LinkPulse/config"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
)

func main() {
	var (
		owner = flag.String("owner", "", "Owner id to embed in the token")
		ttl   = flag.Duration("ttl", 0, "Token lifetime; defaults to app.token_ttl")
	)
	flag.Parse()

	if *owner == "" {
		fmt.Fprintln(os.Stderr, "-owner is required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	lifetime := cfg.App.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := httpUtil.NewTokenSigner([]byte(cfg.App.Secret), lifetime).Issue(*owner)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(lifetime).UTC().Format(time.RFC3339))
}
