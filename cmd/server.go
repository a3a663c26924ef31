package cmd

import (
	"PulseFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动PulseFM服务器",
	Long:  `启动PulseFM播放控制器：拉起媒体引擎、维护播放队列并对外提供API与音频推流`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
