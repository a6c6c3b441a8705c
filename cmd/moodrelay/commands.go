package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/moodrelay/internal/config"
)

type chatResult struct {
	AIResponse   string  `json:"ai_response"`
	EmotionScore float64 `json:"emotion_score"`
	Timestamp    string  `json:"timestamp"`
}

type talkResult struct {
	Message      string  `json:"message"`
	EmotionScore float64 `json:"emotion_score"`
	Timestamp    string  `json:"timestamp"`
}

type moodResult struct {
	Mood               string            `json:"mood"`
	AverageScore       float64           `json:"average_emotion_score"`
	RecentInteractions []json.RawMessage `json:"recent_interactions"`
}

// userAndMessage reads --user and joins the positional args into the message.
func userAndMessage(cmd *cobra.Command, args []string) (string, string, error) {
	user, _ := cmd.Flags().GetString("user")
	message := strings.TrimSpace(strings.Join(args, " "))
	if user == "" || message == "" {
		return "", "", errors.New("--user and a message are required")
	}
	return user, message, nil
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the LLM and print the reply",
	Long: `Send a message to the LLM on behalf of a user and print the reply.

Examples:
  moodrelay chat --user alice "Hello, how are you?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, message, err := userAndMessage(cmd, args)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runChat(cmd.Context(), client, cmd.OutOrStdout(), user, message)
	},
}

func runChat(ctx context.Context, c *apiClient, w io.Writer, user, message string) error {
	resp, err := c.post(ctx, "/chat", map[string]string{"user_id": user, "message": message})
	if err != nil {
		return err
	}
	var res chatResult
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}
	fmt.Fprintln(w, res.AIResponse)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "sentiment:"), formatScore(res.EmotionScore))
	return nil
}

// --- talk ---

var talkCmd = &cobra.Command{
	Use:   "talk <message>",
	Short: "Record a message for sentiment tracking without calling the LLM",
	Long: `Record a message for sentiment tracking without calling the LLM.

Examples:
  moodrelay talk --user alice "What a wonderful morning"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, message, err := userAndMessage(cmd, args)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runTalk(cmd.Context(), client, cmd.OutOrStdout(), user, message)
	},
}

func runTalk(ctx context.Context, c *apiClient, w io.Writer, user, message string) error {
	resp, err := c.post(ctx, "/talk", map[string]string{"user_id": user, "message": message})
	if err != nil {
		return err
	}
	var res talkResult
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (sentiment %s at %s)\n", res.Message, formatScore(res.EmotionScore), res.Timestamp)
	return nil
}

// --- mood ---

var moodCmd = &cobra.Command{
	Use:   "mood",
	Short: "Show a user's mood over the last few minutes",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			return errors.New("--user is required")
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runMood(cmd.Context(), client, cmd.OutOrStdout(), user, asJSON)
	},
}

func runMood(ctx context.Context, c *apiClient, w io.Writer, user string, asJSON bool) error {
	resp, err := c.get(ctx, "/mood", url.Values{"user_id": {user}})
	if err != nil {
		return err
	}
	var res moodResult
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Mood:"), colorize(moodColor(res.Mood), res.Mood))
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "Average:"), formatScore(res.AverageScore))
	fmt.Fprintf(w, "  %s %d\n", colorize(colorBold, "Recent messages:"), len(res.RecentInteractions))
	return nil
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a user's stored interactions as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			return errors.New("--user is required")
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runHistory(cmd.Context(), client, cmd.OutOrStdout(), user)
	},
}

func runHistory(ctx context.Context, c *apiClient, w io.Writer, user string) error {
	resp, err := c.get(ctx, "/history", url.Values{"user_id": {user}})
	if err != nil {
		return err
	}
	var res any
	if err := decodeJSON(resp, &res); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, talkCmd, moodCmd, historyCmd} {
		c.Flags().StringP("user", "u", "", "user identifier")
	}
	moodCmd.Flags().Bool("json", false, "print the raw JSON response")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "# %s\n", config.ConfigFilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		if cfg.RequireAPIKey() != nil {
			printWarning("no API key configured")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file. llm.api_key is written to the platform secret store instead.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if key == "llm.api_key" {
			printSuccess("Stored %s in the secret store", key)
			return nil
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "moodrelay version %s\n", version)
	},
}
