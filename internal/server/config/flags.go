package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-g string   gRPC bind address (e.g., ":50051")
//	-d string   database URL
//	-t int      access token validity, minutes
//	-r int      refresh token validity, days
//
// args is filtered with flagx.FilterArgs first, so flags owned by other
// layers (such as -c) do not cause parse errors.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database URL")

	accessMinutes := fs.Int("t", -1, "access token validity (in minutes)")
	refreshDays := fs.Int("r", -1, "refresh token validity (in days)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *accessMinutes >= 0 {
		config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
	}
	if *refreshDays >= 0 {
		config.RefreshTokenValidityDuration = time.Duration(*refreshDays) * 24 * time.Hour
	}

	return nil
}
