package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/panel-interview/internal/client"
	"github.com/spigell/panel-interview/internal/logger"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Take an interview in the terminal against a running gateway",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := runInterview(cmd); err != nil {
			log.Fatalf("interview: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().StringP("server", "s", "http://localhost:5000", "gateway address")
	interviewCmd.Flags().StringP("panel", "p", "", "panel id returned by analyze")
	interviewCmd.Flags().String("session", "", "session id to start or resume")
	interviewCmd.Flags().BoolP("resume", "r", false, "resume the session given by --session")

	viper.BindPFlag("client.server", interviewCmd.Flags().Lookup("server"))
}

func runInterview(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	server := viper.GetString("client.server")
	panelID, _ := cmd.Flags().GetString("panel")
	sessionID, _ := cmd.Flags().GetString("session")
	resume, _ := cmd.Flags().GetBool("resume")

	if resume && sessionID == "" {
		return fmt.Errorf("--resume needs --session")
	}
	if !resume && strings.TrimSpace(panelID) == "" {
		return fmt.Errorf("--panel is required to start an interview")
	}

	conn, err := client.Dial(ctx, server, sessionID)
	if err != nil {
		return err
	}
	defer conn.Close()

	speaker := client.NewTerminalSpeaker(os.Stdout)
	speaker.Note(fmt.Sprintf("Answer each question and press ENTER. Type %s to finish early.", client.EndCommand))

	iv := client.NewInterviewer(conn, speaker, client.NewTerminalListener(os.Stdin), logger)
	if resume {
		sessionID, err = iv.Resume(ctx, sessionID)
	} else {
		sessionID, err = iv.Start(ctx, panelID, sessionID)
	}
	if err != nil {
		return err
	}

	logger.Info("interview finished", zap.String("session_id", sessionID))
	speaker.Note(fmt.Sprintf("Interview complete. Feedback: %s/api/sessions/%s/feedback (PDF: /export)", strings.TrimRight(server, "/"), sessionID))
	return nil
}
