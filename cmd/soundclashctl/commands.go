package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const requestTimeout = 5 * time.Second

func bindServerFlag(cmd *cobra.Command, serverAddr *string) {
	flag := cmd.Flags().Lookup("server")
	if flag == nil || flag.Changed {
		return
	}

	v := viper.New()
	v.SetEnvPrefix("SOUNDCLASHCTL")
	v.AutomaticEnv()
	if v.IsSet("server") {
		*serverAddr = v.GetString("server")
	}
}

func newCreateCmd(serverAddr *string) *cobra.Command {
	var maxRounds int
	var genres []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new game and print its game code",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindServerFlag(cmd, serverAddr)

			body, err := json.Marshal(map[string]any{"max_rounds": maxRounds, "genres": genres})
			if err != nil {
				return err
			}

			resp, err := httpClient().Post(strings.TrimRight(*serverAddr, "/")+"/api/games", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("create game: %w", err)
			}
			defer resp.Body.Close()

			return printOrError(resp, "created game")
		},
	}

	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "number of rounds to play (0 uses the server default)")
	cmd.Flags().StringSliceVar(&genres, "genres", nil, "comma-separated genre filter (empty uses the server default)")

	return cmd
}

func newKickCmd(serverAddr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kick <game-code> <team-name>",
		Short: "Remove a team from a waiting game",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindServerFlag(cmd, serverAddr)

			url := fmt.Sprintf("%s/api/games/%s/kick/%s", strings.TrimRight(*serverAddr, "/"), args[0], args[1])
			req, err := http.NewRequest(http.MethodPost, url, nil)
			if err != nil {
				return err
			}

			resp, err := httpClient().Do(req)
			if err != nil {
				return fmt.Errorf("kick team: %w", err)
			}
			defer resp.Body.Close()

			return printOrError(resp, "kicked")
		},
	}
	return cmd
}

func newHealthCmd(serverAddr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server liveness",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindServerFlag(cmd, serverAddr)

			resp, err := httpClient().Get(strings.TrimRight(*serverAddr, "/") + "/health")
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			defer resp.Body.Close()

			return printOrError(resp, "healthy")
		},
	}
	return cmd
}

func httpClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func printOrError(resp *http.Response, okLabel string) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}

	fmt.Printf("%s: %s\n", okLabel, string(data))
	return nil
}
