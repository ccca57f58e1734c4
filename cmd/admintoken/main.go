package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"cfsub/internal/config"
	"cfsub/internal/services"
)

// admintoken prints a bearer token for POST /api/refresh, signed with ADMIN_JWT_SECRET.
func main() {
	operator := flag.String("operator", "cli", "operator name recorded in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := config.Load(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if config.Current.AdminJWTSecret == "" {
		logrus.Fatal("ADMIN_JWT_SECRET is not set; the refresh endpoint is open")
	}

	token, err := services.GenerateAdminToken(config.Current.AdminJWTSecret, *operator, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("sign token")
	}
	fmt.Fprintln(os.Stdout, token)
}
