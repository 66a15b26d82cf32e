// Command console is a terminal client for the lead API. It drives the
// lead store controller and the chat session controller against a running
// API server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/apexcrm/lead-console/internal/chat"
	appconfig "github.com/apexcrm/lead-console/internal/config"
	"github.com/apexcrm/lead-console/internal/console"
	"github.com/apexcrm/lead-console/internal/leadapi"
	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/pkg/logging"
)

// printNotifier surfaces controller notices on the terminal.
type printNotifier struct{}

func (printNotifier) Success(msg string) { fmt.Println("✓ " + msg) }
func (printNotifier) Error(msg string)   { fmt.Println("✗ " + msg) }

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New("error")

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}

	client, err := leadapi.New(leadapi.Config{
		BaseURL: baseURL,
		Timeout: cfg.RemoteTimeout,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
	streamClient, err := leadapi.NewStreamClient(leadapi.Config{
		BaseURL: baseURL,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}

	store := console.NewStore(console.StoreConfig{
		Remote:    client,
		Extractor: client,
		Notifier:  printNotifier{},
		Logger:    logger,
		Timeout:   cfg.RemoteTimeout,
	})
	session := chat.NewSession(chat.SessionConfig{
		Stream:  streamClient,
		Logger:  logger,
		Timeout: cfg.StreamTimeout,
	})

	ctx := context.Background()
	if err := store.Refresh(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "console: initial load failed:", err)
	}

	fmt.Println("lead console connected to", baseURL)
	fmt.Println(`type "help" for commands`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			printHelp()
		case "list":
			printLeads(store.Leads())
		case "filter":
			if len(args) != 1 {
				fmt.Println("usage: filter All|New|Contacted")
				continue
			}
			store.SetFilter(console.StatusFilter(args[0]))
			printLeads(store.Leads())
		case "refresh":
			if err := store.Refresh(ctx); err == nil {
				fmt.Println("refreshed")
			}
		case "add":
			if len(args) < 2 {
				fmt.Println("usage: add <name> <email> [phone]")
				continue
			}
			draft := leads.Draft{Name: args[0], Email: args[1]}
			if len(args) > 2 {
				draft.Phone = args[2]
			}
			_, _ = store.Create(ctx, draft)
		case "upload":
			if len(args) != 1 {
				fmt.Println("usage: upload <path-to-pdf>")
				continue
			}
			document, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Println("read failed:", err)
				continue
			}
			_, _ = store.CreateFromDocument(ctx, document, documentMediaType(args[0]))
		case "status":
			if len(args) != 2 {
				fmt.Println("usage: status <id> <New|Contacted>")
				continue
			}
			_ = store.UpdateStatus(ctx, args[0], args[1])
		case "toggle":
			if len(args) != 1 {
				fmt.Println("usage: toggle <id>")
				continue
			}
			_ = store.ToggleStatus(ctx, args[0])
		case "delete":
			if len(args) != 1 {
				fmt.Println("usage: delete <id>")
				continue
			}
			_ = store.Delete(ctx, args[0])
		case "chat":
			if len(args) != 1 {
				fmt.Println("usage: chat <id>")
				continue
			}
			lead := findLead(store, args[0])
			if lead == nil {
				fmt.Println("unknown lead id")
				continue
			}
			runChat(ctx, session, scanner, lead)
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command, try \"help\"")
		}
	}
}

func findLead(store *console.Store, id string) *leads.Lead {
	for _, l := range store.Filter(console.FilterAll) {
		if l.ID == id || strings.HasPrefix(l.ID, id) {
			return l
		}
	}
	return nil
}

// documentMediaType infers the upload's media type from the file
// extension so non-PDF files are rejected before any network call.
func documentMediaType(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// runChat owns the terminal until the user types /close.
func runChat(ctx context.Context, session *chat.Session, scanner *bufio.Scanner, lead *leads.Lead) {
	session.Open(lead)
	defer session.Close()

	msgs := session.Messages()
	fmt.Println(msgs[0].Text)

	for {
		fmt.Print("chat> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "/close" {
			return
		}
		if text == "" {
			continue
		}

		session.Send(ctx, text)
		renderStreaming(session)
	}
}

// renderStreaming prints assistant text as it arrives.
func renderStreaming(session *chat.Session) {
	printed := 0
	for {
		msgs := session.Messages()
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			if last.Sender == chat.SenderAssistant && len(last.Text) > printed {
				fmt.Print(last.Text[printed:])
				printed = len(last.Text)
			}
		}
		if !session.Loading() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	// Catch text that landed between the last poll and loading clearing.
	msgs := session.Messages()
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Sender == chat.SenderAssistant && len(last.Text) > printed {
			fmt.Print(last.Text[printed:])
		}
	}
	fmt.Println()
}

func printLeads(all []*leads.Lead) {
	if len(all) == 0 {
		fmt.Println("(no leads)")
		return
	}
	for _, l := range all {
		phone := l.Phone
		if phone == "" {
			phone = "-"
		}
		fmt.Printf("%-36s  %-12s %-20s %-24s %s\n", l.ID, l.Status, l.Name, l.Email, phone)
	}
}

func printHelp() {
	fmt.Println(`commands:
  list                        show leads under the active filter
  filter All|New|Contacted    set the active filter
  add <name> <email> [phone]  capture a lead
  upload <path>               extract a lead from a PDF
  status <id> <status>        set lead status
  toggle <id>                 flip New/Contacted
  delete <id>                 remove a lead
  refresh                     reload from the server
  chat <id>                   open an assistant chat about a lead
  quit                        exit`)
}
