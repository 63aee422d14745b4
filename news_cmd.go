package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coder6688/wenxuecity-tts/internal/news"
	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

var (
	newsFilter string
	newsURLs   bool

	newsCmd = &cobra.Command{
		Use:   "news",
		Short: "List the current headlines",
		Long: paragraph(fmt.Sprintf("\nList the headlines on the front page. The numbers work with %s.",
			keyword("--news N"))),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := tts.LoadConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			items, err := news.NewClient(cfg.News).Headlines(cmd.Context())
			if err != nil {
				return err
			}

			numbers := make(map[string]int, len(items))
			for i, it := range items {
				numbers[it.URL] = i + 1
			}

			out := cmd.OutOrStdout()
			width := len(strconv.Itoa(len(items)))
			for _, it := range news.Filter(items, newsFilter) {
				fmt.Fprintf(out, "%s %s\n", keyword(fmt.Sprintf("%*d.", width, numbers[it.URL])), it.Title)
				if newsURLs {
					fmt.Fprintf(out, "%*s %s\n", width+1, "", subtle(it.URL))
				}
			}
			return nil
		},
	}
)

func init() {
	newsCmd.Flags().StringVarP(&newsFilter, "filter", "f", "", "only list headlines fuzzily matching the query")
	newsCmd.Flags().BoolVarP(&newsURLs, "urls", "u", false, "print article URLs")
}
