package main

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiq/coshell/internal/config"
	"github.com/aiq/coshell/internal/middleware"
	"github.com/aiq/coshell/internal/ui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the probe, backend, and middleware are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd)
		},
	}
}

func printStatus(cmd *cobra.Command) error {
	runDir, err := config.GetRunDir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	for _, name := range []string{"probe", "backend", "middleware"} {
		sock := filepath.Join(runDir, name+".sock")
		fmt.Fprintf(out, "%-11s %s\n", name+":", socketGlyph(sock))
	}

	middlewareClient := middleware.NewClient(filepath.Join(runDir, "middleware.sock"))
	defer middlewareClient.Close()
	reply, err := middlewareClient.Status()
	if err != nil {
		fmt.Fprintf(out, "ai:         %s\n", ui.ErrorText("unavailable"))
		return nil
	}
	fmt.Fprintf(out, "ai:         %s\n", reply.Kind)
	return nil
}

func socketGlyph(socketPath string) string {
	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		return ui.RenderGlyph(ui.GlyphDead)
	}
	conn.Close()
	return ui.RenderGlyph(ui.GlyphRunning)
}
