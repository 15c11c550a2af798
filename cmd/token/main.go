// Command token mints identity tokens accepted by the /api routes. It is a
// development helper; production tokens come from the auth provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sifan077/LinkPulse/config"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
)

func main() {
	user := flag.String("user", "", "username to embed in the token")
	perms := flag.String("perms", "", "comma separated permission strings, e.g. admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "token: -user is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "token: auth.jwt_secret (JWT_SECRET) is not set")
		os.Exit(1)
	}

	ident := model.Identity{Username: *user}
	for _, p := range strings.Split(*perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ident.Permissions = append(ident.Permissions, p)
		}
	}

	token, err := middleware.IssueIdentityToken([]byte(cfg.Auth.JWTSecret), ident, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: sign: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
