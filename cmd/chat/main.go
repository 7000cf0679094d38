package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:3210", "Makers assistant server URL")
	user := flag.String("user", "cli-user", "User name for chat")
	flag.Parse()

	fmt.Println("Makers assistant CLI")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /status, /sync, /gateways (other /commands go to the assistant)")
	fmt.Println("---")

	fetchStatus(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch input {
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		case "/status":
			fetchStatus(*server)
			continue
		case "/sync":
			triggerSync(*server)
			continue
		case "/gateways":
			fetchGateways(*server)
			continue
		}

		sendMessage(*server, *user, input)
	}
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var st struct {
		Ready      bool    `json:"ready"`
		LastSync   *string `json:"last_sync,omitempty"`
		Products   int     `json:"products"`
		Embedding  bool    `json:"embedding"`
		Index      bool    `json:"index"`
		Completion bool    `json:"completion"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Printf("Ready: %s | Products: %d", check(st.Ready), st.Products)
	if st.LastSync != nil {
		fmt.Printf(" | Last sync: %s", *st.LastSync)
	}
	fmt.Println()
	fmt.Printf("  %s embedding  %s index  %s completion\n", check(st.Embedding), check(st.Index), check(st.Completion))
}

func triggerSync(server string) {
	resp, err := http.Post(server+"/api/sync", "application/json", nil)
	if err != nil {
		printError("Sync request failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}
	fmt.Println("Catalog sync started.")
}

func fetchGateways(server string) {
	resp, err := http.Get(server + "/api/gateway/status")
	if err != nil {
		printError("Failed to fetch gateways: %v", err)
		return
	}
	defer resp.Body.Close()

	var statuses []struct {
		Platform  string `json:"platform"`
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
		Details   string `json:"details,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		printError("Failed to parse gateways: %v", err)
		return
	}
	fmt.Println("Gateway Status:")
	for _, s := range statuses {
		fmt.Printf("  %s %s", check(s.Connected), s.Platform)
		if s.Details != "" {
			fmt.Printf(" (%s)", s.Details)
		}
		if s.Error != "" {
			fmt.Printf(" \033[31m%s\033[0m", s.Error)
		}
		fmt.Println()
	}
}

func sendMessage(server, user, content string) {
	body, _ := json.Marshal(map[string]string{
		"user_id":   user,
		"user_name": user,
		"content":   content,
	})

	client := &http.Client{Timeout: 95 * time.Second}
	resp, err := client.Post(
		server+"/api/gateway/rest/message",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var msg struct {
		Content  string `json:"content"`
		Tier     string `json:"tier"`
		Degraded bool   `json:"degraded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	fmt.Println(msg.Content)
	if msg.Tier != "" {
		tag := msg.Tier
		if msg.Degraded {
			tag += ", degraded"
		}
		fmt.Printf("\033[90m[%s]\033[0m\n", tag)
	}
}

func check(ok bool) string {
	if ok {
		return "\033[32m✓\033[0m"
	}
	return "\033[31m✗\033[0m"
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
