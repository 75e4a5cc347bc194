package banner

import (
	"fmt"

	"introchat/pkg/config"
)

const banner = `
██╗███╗   ██╗████████╗██████╗  ██████╗  ██████╗██╗  ██╗ █████╗ ████████╗
██║████╗  ██║╚══██╔══╝██╔══██╗██╔═══██╗██╔════╝██║  ██║██╔══██╗╚══██╔══╝
██║██╔██╗ ██║   ██║   ██████╔╝██║   ██║██║     ███████║███████║   ██║
██║██║╚██╗██║   ██║   ██╔══██╗██║   ██║██║     ██╔══██║██╔══██║   ██║
██║██║ ╚████║   ██║   ██║  ██║╚██████╔╝╚██████╗██║  ██║██║  ██║   ██║
╚═╝╚═╝  ╚═══╝   ╚═╝   ╚═╝  ╚═╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// PrintWithEff prints the startup banner using an EffectiveConfigResult
// which provides richer context (config, addr, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/threads' -d '{\"provider\": \"handyman-7\"}'")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/threads/<id>/messages' -d '{\"kind\": \"text\", \"fields\": {\"body\": \"hello\"}}'")
	fmt.Println("\n== Production? =================================================")
	be := 0
	fe := 0
	ak := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		fe = len(eff.Config.Security.APIKeys.Frontend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for billing and prefs pushes)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}

	// TLS
	tlsOK := eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != ""
	if tlsOK {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if eff.DBPath != "" {
		fmt.Printf("- DB Path: %s\n", eff.DBPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or INTROCHAT_DB_PATH)")
	}

	// Realtime broker
	broker := "memory"
	if eff.Config != nil && eff.Config.Realtime.Broker != "" {
		broker = eff.Config.Realtime.Broker
	}
	if broker == "redis" {
		fmt.Printf("- Realtime: redis (%s)\n", eff.Config.Realtime.Redis.Addr)
	} else {
		fmt.Println("- Realtime: in-process (single instance only)")
	}

	// Subscription expiry sweep
	if eff.Config != nil && eff.Config.Expiry.Enabled {
		if eff.Config.Expiry.Cron != "" {
			fmt.Printf("- Expiry sweep: enabled (cron=%s)\n", eff.Config.Expiry.Cron)
		} else {
			fmt.Println("- Expiry sweep: enabled")
		}
	} else {
		fmt.Println("- Expiry sweep: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
