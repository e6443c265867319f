package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/blacktop/blogrelay/internal/config"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	captionFlag string
	dryRun      bool
)

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".m4v": {},
}

func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish media or a feed post by hand",
		Long: "publish runs a single item through the same clients the webhook server uses. " +
			"The caption comes from --caption or, when piped, from stdin.",
		Example: `  blogrelay publish image https://example.com/cover.jpg --caption "New article"
  blogrelay publish reel https://example.com/clip.mp4 --share-to-feed
  echo "Launch day" | blogrelay publish feed --link https://example.com/launch`,
	}

	cmd.PersistentFlags().StringVarP(&captionFlag, "caption", "m", "", "Caption or message text")
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Print actions without publishing")

	cmd.AddCommand(
		newMediaCommand("image", "Publish a single image", relay.KindImage),
		newMediaCommand("video", "Publish a single video", relay.KindVideo),
		newStoryCommand(),
		newReelCommand(),
		newCarouselCommand(),
		newFeedCommand(),
	)
	return cmd
}

func newMediaCommand(use, short string, kind relay.MediaKind) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <url>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caption, err := resolveCaption(cmd, false)
			if err != nil {
				return err
			}
			return publishMedia(cmd, relay.MediaItem{Kind: kind, SourceURL: args[0], Caption: caption})
		},
	}
}

func newStoryCommand() *cobra.Command {
	var video bool
	cmd := &cobra.Command{
		Use:   "story <url>",
		Short: "Publish a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return publishMedia(cmd, relay.MediaItem{
				Kind:      relay.KindStory,
				SourceURL: args[0],
				Video:     video || isVideoURL(args[0]),
			})
		},
	}
	cmd.Flags().BoolVar(&video, "video", false, "Treat the url as a video")
	return cmd
}

func newReelCommand() *cobra.Command {
	var shareToFeed bool
	cmd := &cobra.Command{
		Use:   "reel <url>",
		Short: "Publish a reel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caption, err := resolveCaption(cmd, false)
			if err != nil {
				return err
			}
			return publishMedia(cmd, relay.MediaItem{
				Kind:        relay.KindReel,
				SourceURL:   args[0],
				Caption:     caption,
				ShareToFeed: shareToFeed,
			})
		},
	}
	cmd.Flags().BoolVar(&shareToFeed, "share-to-feed", false, "Also show the reel in the main feed")
	return cmd
}

func newCarouselCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "carousel <url> <url> [url...]",
		Short: "Publish a carousel of 2 to 10 images or videos",
		Args:  cobra.RangeArgs(2, 10),
		RunE: func(cmd *cobra.Command, args []string) error {
			caption, err := resolveCaption(cmd, false)
			if err != nil {
				return err
			}
			items := carouselItems(args)
			out := cmd.OutOrStdout()

			if dryRun {
				for i, item := range items {
					fmt.Fprintf(out, "[dry-run] carousel item %d: %s (video: %t)\n", i, item.SourceURL, item.Video)
				}
				fmt.Fprintf(out, "[dry-run] caption: %q\n", caption)
				return nil
			}

			cfg, p, acct, err := mediaAccount(cmd.Context())
			if err != nil {
				return err
			}
			res := buildPipeline(cfg, p, nil).PublishCarousel(cmd.Context(), acct, items, caption)
			return printResult(out, relay.KindCarousel.String(), res)
		},
	}
}

func newFeedCommand() *cobra.Command {
	var (
		link   string
		params []string
		cta    relay.CallToAction
	)
	cmd := &cobra.Command{
		Use:   "feed [message]",
		Short: "Publish a post to the page feed",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				var err error
				if message, err = resolveCaption(cmd, link == ""); err != nil {
					return err
				}
			}
			extra, err := parseParams(params)
			if err != nil {
				return err
			}
			post := relay.FeedPost{Message: message, Link: link, Params: extra}
			if cmd.Flags().Changed("cta-type") || cta.Link != "" || cta.AppLink != "" {
				if cta.Link == "" {
					return errors.New("--cta-link is required with a call to action")
				}
				post.CallToAction = &cta
			}
			out := cmd.OutOrStdout()

			if dryRun {
				fmt.Fprintf(out, "[dry-run] would post to facebook: %q\n", post.Message)
				if post.Link != "" {
					fmt.Fprintf(out, "[dry-run] link: %s\n", post.Link)
				}
				if post.CallToAction != nil {
					fmt.Fprintf(out, "[dry-run] call to action: %s %s\n", cta.Type, cta.Link)
				}
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Require(config.FeedVars...); err != nil {
				return err
			}
			p, err := buildPlatforms(cfg)
			if err != nil {
				return err
			}
			acct := p.feedGraph.ResolveAccount(cmd.Context(), cfg.Facebook.PageID)
			acct.ID = cfg.Facebook.PageID

			fmt.Fprintln(out, "posting to facebook...")
			id, err := p.feed.CreateFeedPost(cmd.Context(), acct, post)
			if err != nil {
				return fmt.Errorf("facebook: %w", err)
			}
			fmt.Fprintf(out, "posted to facebook: %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&link, "link", "", "Link to attach to the post")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Extra feed parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&cta.Type, "cta-type", relay.DefaultCallToActionType, "Call to action button type")
	cmd.Flags().StringVar(&cta.Link, "cta-link", "", "Call to action link")
	cmd.Flags().StringVar(&cta.AppLink, "cta-app-link", "", "Call to action app link")
	return cmd
}

func publishMedia(cmd *cobra.Command, item relay.MediaItem) error {
	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(out, "[dry-run] would publish %s: %s\n", item.Kind, item.SourceURL)
		if item.Caption != "" {
			fmt.Fprintf(out, "[dry-run] caption: %q\n", item.Caption)
		}
		return nil
	}

	cfg, p, acct, err := mediaAccount(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "publishing %s...\n", item.Kind)
	res := buildPipeline(cfg, p, nil).Publish(cmd.Context(), acct, item)
	return printResult(out, item.Kind.String(), res)
}

// mediaAccount loads the configuration, builds the clients and resolves the media account with its token.
func mediaAccount(ctx context.Context) (config.Config, *platforms, relay.Account, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, relay.Account{}, err
	}
	if err := cfg.Require(config.MediaVars...); err != nil {
		return config.Config{}, nil, relay.Account{}, err
	}
	p, err := buildPlatforms(cfg)
	if err != nil {
		return config.Config{}, nil, relay.Account{}, err
	}
	acct := p.mediaGraph.ResolveAccount(ctx, cfg.Instagram.PageID)
	acct.ID = cfg.Instagram.AccountID
	return cfg, p, acct, nil
}

func printResult(out io.Writer, kind string, res relay.PublishResult) error {
	if !res.Success {
		if res.FailedIndex >= 0 {
			return fmt.Errorf("%s: %s (item %d): %w", kind, res.Reason, res.FailedIndex, res.Err)
		}
		return fmt.Errorf("%s: %s: %w", kind, res.Reason, res.Err)
	}
	fmt.Fprintf(out, "published %s: media_id=%s container_id=%s\n", kind, res.MediaID, res.ContainerID)
	return nil
}

// resolveCaption returns --caption, or stdin when it is piped.
func resolveCaption(cmd *cobra.Command, required bool) (string, error) {
	if captionFlag != "" {
		return strings.TrimSpace(captionFlag), nil
	}

	var caption string
	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); !ok || !term.IsTerminal(int(file.Fd())) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		caption = strings.TrimSpace(string(data))
	}

	if caption == "" && required {
		return "", errors.New("message is required")
	}
	return caption, nil
}

func carouselItems(urls []string) []relay.MediaItem {
	items := make([]relay.MediaItem, 0, len(urls))
	for _, u := range urls {
		items = append(items, relay.MediaItem{
			Kind:      relay.KindCarouselChild,
			SourceURL: u,
			Video:     isVideoURL(u),
		})
	}
	return items
}

func isVideoURL(raw string) bool {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	_, ok := videoExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

func parseParams(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(values))
	for _, kv := range values {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		params[key] = value
	}
	return params, nil
}
