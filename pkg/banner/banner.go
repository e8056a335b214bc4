package banner

import (
	"fmt"

	"chatdb/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗    ██████╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝    ██╔══██╗██╔══██╗
██║     ███████║███████║   ██║       ██║  ██║██████╔╝
██║     ██╔══██║██╔══██║   ██║       ██║  ██║██╔══██╗
╚██████╗██║  ██║██║  ██║   ██║       ██████╔╝██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝       ╚═════╝ ╚═════╝
`

// PrintWithEff prints the startup banner using an EffectiveConfigResult.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
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
	fmt.Printf("Config sources: %s\n", src)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/messages - Append a message (JSON: text, image_url)")
	fmt.Println("GET  /v1/messages?limit=<n> - Recent window, oldest-first")
	fmt.Println("POST /v1/reads - Mark messages read (ids or trigger)")
	fmt.Println("GET  /v1/feed - Live snapshot stream (SSE)")
	fmt.Println("POST /v1/uploads - Image upload (full + thumbnail derivatives)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/messages' -d '{\"text\": \"hello\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/messages?limit=10'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Configure API keys and user signing secrets")
}
