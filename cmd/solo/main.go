package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	conf "github.com/iceymoss/go-solo/pkg/config"
	"github.com/iceymoss/go-solo/pkg/db/objects"
	"github.com/iceymoss/go-solo/pkg/logger"
	"github.com/iceymoss/go-solo/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	limit      int
	be         *backend

	addFlags struct {
		title     string
		permalink string
		author    string
		content   string
		tags      string
		draft     bool
		top       bool
	}
)

var rootCmd = &cobra.Command{
	Use:   "solo",
	Short: "solo - article store maintenance tool",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env 可选
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("❌ .env error", zap.Error(err))
		}
		if err := conf.InitConfig(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		var err error
		be, err = newBackend(conf.ServiceConf)
		return err
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create article table and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := be.store.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("✅ migrate done", zap.String("backend", conf.ServiceConf.Store.Backend))
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an article",
	RunE: func(cmd *cobra.Command, args []string) error {
		content := addFlags.content
		if content == "-" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			content = string(b)
		}
		article := &objects.Article{
			Title:       addFlags.title,
			Permalink:   addFlags.permalink,
			AuthorID:    addFlags.author,
			Content:     content,
			TagsRef:     addFlags.tags,
			Status:      objects.ArticleStatusPublished,
			PutTop:      addFlags.top,
			Commentable: true,
		}
		if addFlags.draft {
			article.Status = objects.ArticleStatusDraft
		}
		id, err := be.service.AddArticle(cmd.Context(), article)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [permalink]",
	Short: "Show an article by permalink",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		article, err := be.store.GetByPermalink(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if article == nil {
			return fmt.Errorf("article %q not found", args[0])
		}
		printArticles(cmd.OutOrStdout(), []*objects.Article{article})
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := be.store.GetRecentArticles(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printArticles(cmd.OutOrStdout(), articles)
		return nil
	},
}

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Sample articles randomly",
	RunE: func(cmd *cobra.Command, args []string) error {
		articles, err := be.store.GetRandomly(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printArticles(cmd.OutOrStdout(), articles)
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := be.store.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var publishedCmd = &cobra.Command{
	Use:   "published [id]",
	Short: "Check whether an article is published",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := be.store.IsPublished(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		return nil
	},
}

func printArticles(w io.Writer, articles []*objects.Article) {
	for _, a := range articles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, utils.FormatMillis(a.Created), a.Status, a.Permalink, a.Title)
	}
}

func main() {
	defer logger.Sync()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	addCmd.Flags().StringVar(&addFlags.title, "title", "", "Article title")
	addCmd.Flags().StringVar(&addFlags.permalink, "permalink", "", "Article permalink")
	addCmd.Flags().StringVar(&addFlags.author, "author", "", "Author id")
	addCmd.Flags().StringVar(&addFlags.content, "content", "", `Article content, "-" reads stdin`)
	addCmd.Flags().StringVar(&addFlags.tags, "tags", "", "Comma separated tags")
	addCmd.Flags().BoolVar(&addFlags.draft, "draft", false, "Save as draft")
	addCmd.Flags().BoolVar(&addFlags.top, "top", false, "Pin the article")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("permalink")

	for _, c := range []*cobra.Command{recentCmd, randomCmd} {
		c.Flags().IntVarP(&limit, "limit", "n", 10, "Number of articles")
	}

	rootCmd.AddCommand(migrateCmd, addCmd, getCmd, recentCmd, randomCmd, countCmd, publishedCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
