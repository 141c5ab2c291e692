package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/docchat/internal/composer"
)

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document to the knowledge base",
	Long: `Upload a document to the knowledge base.

Supported formats: PDF, TXT, MD, DOCX. The document is chunked and embedded
in the background; check progress with "docchat documents list".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %s", args[0])
		resp, err := client.uploadFile(cmd.Context(), "/api/documents/upload", args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Uploaded %s (%s), status: %s", result["name"], result["id"], result["status"])
		return nil
	},
}

// --- documents ---

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage uploaded documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/documents")
		if err != nil {
			return err
		}

		var result struct {
			Documents []struct {
				ID         string `json:"id"`
				Name       string `json:"name"`
				Status     string `json:"status"`
				ChunkCount int    `json:"chunkCount"`
				Error      string `json:"error"`
			} `json:"documents"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Documents) == 0 {
			fmt.Println("no documents uploaded")
			return nil
		}

		for _, d := range result.Documents {
			line := fmt.Sprintf("%s  %s  %s (%d chunks)",
				d.ID, colorize(colorBold, fmt.Sprintf("%-30s", d.Name)), statusLabel(d.Status), d.ChunkCount)
			if d.Status == "error" {
				line += "  " + d.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

var documentsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/api/documents/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]bool
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsRmCmd)
}

// statusLabel colors a document status for terminal output.
func statusLabel(status string) string {
	switch status {
	case "ready":
		return colorize(colorGreen, status)
	case "error":
		return colorize(colorRed, status)
	default:
		return colorize(colorYellow, status)
	}
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask a question grounded in your documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"messages": []map[string]string{
				{"role": "user", "content": question},
			},
		}
		if provider != "" {
			body["provider"] = provider
		}

		resp, err := client.postStream(cmd.Context(), "/api/chat", body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			return decodeJSON(resp, &struct{}{})
		}

		return printChatStream(resp)
	},
}

func init() {
	chatCmd.Flags().String("provider", "", "generation backend: gemini or ollama")
}

// chatEvent mirrors the SSE payloads of POST /api/chat.
type chatEvent struct {
	Type    string            `json:"type"`
	Sources []composer.Source `json:"sources"`
	Content string            `json:"content"`
	Error   string            `json:"error"`
}

// printChatStream prints text deltas as they arrive, then the cited sources.
func printChatStream(resp *http.Response) error {
	var sources []composer.Source

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		var ev chatEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "sources":
			sources = ev.Sources
		case "text":
			fmt.Print(ev.Content)
		case "done":
			fmt.Println()
			printSources(sources)
			return nil
		case "error":
			fmt.Println()
			printError("generation failed: %s", ev.Error)
			return fmt.Errorf("generation failed: %s", ev.Error)
		}
	}
	fmt.Println()
	return scanner.Err()
}

func printSources(sources []composer.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr)
	for _, s := range sources {
		fmt.Fprintf(os.Stderr, "  [Source %d] %s, chunk %d (similarity %.2f)\n",
			s.SourceIndex, s.DocumentName, s.ChunkIndex+1, s.Similarity)
	}
}
