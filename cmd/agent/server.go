package agent

import "github.com/spf13/cobra"

func initServerFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.String("server.addr", defaultCfg.Server.Addr,
		"-> HTTP listening address for /metrics and /status, disabled when empty | HTTP监听地址，为空时不启动")
}
