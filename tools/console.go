package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

var ServerURL = "http://localhost:8080"
var GameID string
var JoinCode string

var client = &http.Client{Timeout: 10 * time.Second}

// --- Models ---
type joinLink struct {
	Code string `json:"code"`
	Link string `json:"link"`
}

type CreateResponse struct {
	Success bool                `json:"success"`
	GameID  string              `json:"gameId"`
	Join    map[string]joinLink `json:"join"`
	Error   string              `json:"error"`
}

type systemView struct {
	ID        string  `json:"id"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Visible   bool    `json:"visible"`
	Owner     *string `json:"owner"`
	Resources *int    `json:"resources"`
	Value     *int    `json:"value"`
}

type unitView struct {
	ID            int    `json:"id"`
	Kind          string `json:"type"`
	Faction       string `json:"faction"`
	SystemID      string `json:"systemId"`
	InTransit     string `json:"inTransit"`
	HitsRemaining int    `json:"hitsRemaining"`
	Cargo         []struct {
		UnitID int `json:"unitId"`
		Amount int `json:"amount"`
	} `json:"cargo"`
	BuildQueue []struct {
		Kind string `json:"type"`
	} `json:"buildQueue"`
}

type StateResponse struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error"`
	Faction    string          `json:"yourFaction"`
	Turn       int             `json:"turn"`
	GameOver   bool            `json:"gameOver"`
	Winner     string          `json:"winner"`
	Ready      map[string]bool `json:"ready"`
	Treasury   int             `json:"treasury"`
	TechLevels map[string]int  `json:"techLevels"`
	Systems    []systemView    `json:"systems"`
	Units      []unitView      `json:"units"`
	TurnLog    []struct {
		Text string `json:"text"`
	} `json:"turnLog"`
}

func main() {
	if u := os.Getenv("GALACTIC_SERVER"); u != "" {
		ServerURL = u
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Galactic Empires Console")
	fmt.Printf("Target Server: %s\n", ServerURL)

	for {
		if !joinLoop(reader) {
			return
		}

		fmt.Println("\n--- COMMAND LINK ESTABLISHED ---")
		fmt.Println("Type 'help' for commands.")

		leave := false
		for !leave {
			fmt.Printf("[%s]> ", shortID(GameID))
			text, _ := reader.ReadString('\n')
			parts := strings.Fields(strings.TrimSpace(text))
			if len(parts) == 0 {
				continue
			}

			switch parts[0] {
			case "state", "s":
				doState()
			case "status":
				doStatus()
			case "move":
				if len(parts) < 3 {
					fmt.Println("Usage: move <shipId> <systemId>")
					continue
				}
				send("/order/move", map[string]any{"unitId": atoi(parts[1]), "toSystemId": parts[2]})
			case "convert":
				if len(parts) < 2 {
					fmt.Println("Usage: convert <shipId>")
					continue
				}
				send("/order/convertToShipyard", map[string]any{"jumpShipId": atoi(parts[1])})
			case "load":
				if len(parts) < 3 {
					fmt.Println("Usage: load <shipId> <unitId>")
					continue
				}
				send("/order/load", map[string]any{"jumpShipId": atoi(parts[1]), "unitId": atoi(parts[2])})
			case "loadres":
				if len(parts) < 3 {
					fmt.Println("Usage: loadres <shipId> <amount>")
					continue
				}
				send("/order/loadResources", map[string]any{"jumpShipId": atoi(parts[1]), "amount": atoi(parts[2])})
			case "unload":
				if len(parts) < 2 {
					fmt.Println("Usage: unload <shipId> [unitId]")
					continue
				}
				payload := map[string]any{"jumpShipId": atoi(parts[1])}
				if len(parts) > 2 {
					payload["unitId"] = atoi(parts[2])
				} else {
					payload["all"] = true
				}
				send("/order/unload", payload)
			case "produce":
				if len(parts) < 4 {
					fmt.Println("Usage: produce <shipyardId> <Kind> <count> [<Kind> <count>...]")
					continue
				}
				var items []map[string]any
				for i := 2; i+1 < len(parts); i += 2 {
					items = append(items, map[string]any{"type": parts[i], "count": atoi(parts[i+1])})
				}
				send("/order/produce", map[string]any{"shipyardId": atoi(parts[1]), "units": items})
			case "research":
				if len(parts) < 4 {
					fmt.Println("Usage: research <labId> <Kind> <targetLevel>")
					continue
				}
				send("/order/research", map[string]any{"labId": atoi(parts[1]), "tech": parts[2], "targetLevel": atoi(parts[3])})
			case "ready":
				send("/turn/ready", nil)
			case "unready":
				send("/turn/unready", nil)
			case "resign":
				fmt.Print("Type RESIGN to confirm: ")
				confirm, _ := reader.ReadString('\n')
				if strings.TrimSpace(confirm) != "RESIGN" {
					send("/resign/intent", map[string]any{"on": false})
					fmt.Println("Cancelled.")
					continue
				}
				if send("/resign/intent", nil) {
					send("/resign", nil)
				}
			case "ledger":
				doGet("/ledger")
			case "replay":
				if len(parts) < 2 {
					fmt.Println("Usage: replay <turn>")
					continue
				}
				doGet("/ledger/" + strconv.Itoa(atoi(parts[1])))
			case "help":
				fmt.Println("Available Commands:")
				fmt.Println("  state                          - Show your view of the galaxy")
				fmt.Println("  status                         - Turn number and ready flags")
				fmt.Println("  move <ship> <system>           - Jump a JumpShip (range 4)")
				fmt.Println("  convert <ship>                 - Turn a JumpShip into a Shipyard")
				fmt.Println("  load <ship> <unit>             - Load a unit into a JumpShip")
				fmt.Println("  loadres <ship> <amount>        - Load system resources")
				fmt.Println("  unload <ship> [unit]           - Unload one unit or everything")
				fmt.Println("  produce <yard> <Kind> <n> ...  - Queue production")
				fmt.Println("  research <lab> <Kind> <level>  - Queue research")
				fmt.Println("  ready | unready                - Toggle end of turn")
				fmt.Println("  resign                         - Concede the game")
				fmt.Println("  ledger                         - Show the turn hash chain")
				fmt.Println("  replay <turn>                  - Your recorded view of a past turn")
				fmt.Println("  leave                          - Back to the join screen")
				fmt.Println("  quit                           - Disconnect")
			case "leave":
				leave = true
				GameID, JoinCode = "", ""
			case "quit", "exit":
				fmt.Println("Disconnecting...")
				os.Exit(0)
			default:
				fmt.Println("Unknown command. Type 'help' for options.")
			}
		}
	}
}

// joinLoop asks for an existing game or creates one. False means quit.
func joinLoop(reader *bufio.Reader) bool {
	for {
		fmt.Println("\n--- JOIN ---")
		fmt.Print("Game ID (or 'new'): ")
		id, _ := reader.ReadString('\n')
		id = strings.TrimSpace(id)

		switch id {
		case "quit", "exit":
			return false
		case "":
			continue
		case "new":
			if doCreate() {
				return true
			}
			continue
		}

		fmt.Print("Join code: ")
		code, _ := reader.ReadString('\n')
		GameID, JoinCode = id, strings.TrimSpace(code)
		if doStatus() {
			return true
		}
		fmt.Println("Join failed. Try again or type 'quit' to exit.")
	}
}

func doCreate() bool {
	resp, err := client.Post(ServerURL+"/games", "application/json", bytes.NewBufferString("{}"))
	if err != nil {
		fmt.Printf("Connection Error: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	var r CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		fmt.Printf("Protocol Error: %v\n", err)
		return false
	}
	if !r.Success {
		fmt.Printf("Create failed: %s\n", r.Error)
		return false
	}

	fmt.Printf("Game %s created.\n", r.GameID)
	for faction, link := range r.Join {
		fmt.Printf("  %-7s code %s  link %s\n", faction, link.Code, link.Link)
	}
	GameID = r.GameID
	JoinCode = r.Join["ithaxi"].Code
	fmt.Println("You are playing Ithaxi. Hand the hive code to your opponent.")
	return true
}

func doStatus() bool {
	body, ok := get("/turn/status")
	if !ok {
		return false
	}
	var s struct {
		Faction  string          `json:"yourFaction"`
		Turn     int             `json:"turn"`
		GameOver bool            `json:"gameOver"`
		Winner   string          `json:"winner"`
		Ready    map[string]bool `json:"ready"`
	}
	json.Unmarshal(body, &s)
	fmt.Printf("Faction: %s | Turn: %d | Ready: ithaxi=%v hive=%v\n", s.Faction, s.Turn, s.Ready["ithaxi"], s.Ready["hive"])
	if s.GameOver {
		fmt.Printf("GAME OVER. Winner: %s\n", orDraw(s.Winner))
	}
	return true
}

func doState() {
	body, ok := get("/state")
	if !ok {
		return
	}
	var s StateResponse
	if err := json.Unmarshal(body, &s); err != nil {
		fmt.Printf("Protocol Error: %v\n", err)
		return
	}

	fmt.Printf("\n== %s | Turn %d | Treasury %d ==\n", strings.ToUpper(s.Faction), s.Turn, s.Treasury)
	if s.GameOver {
		fmt.Printf("GAME OVER. Winner: %s\n", orDraw(s.Winner))
	}
	fmt.Println("Systems:")
	for _, sys := range s.Systems {
		if !sys.Visible {
			fmt.Printf("  %-10s (%2d,%2d)  ?\n", sys.ID, sys.X, sys.Y)
			continue
		}
		owner := "neutral"
		if sys.Owner != nil && *sys.Owner != "" {
			owner = *sys.Owner
		}
		fmt.Printf("  %-10s (%2d,%2d)  %-7s res=%d value=%d\n", sys.ID, sys.X, sys.Y, owner, deref(sys.Resources), deref(sys.Value))
	}
	fmt.Println("Units:")
	for _, u := range s.Units {
		where := u.SystemID
		if where == "" {
			where = "(cargo)"
		}
		line := fmt.Sprintf("  #%-4d %-8s %-7s @ %s", u.ID, u.Kind, u.Faction, where)
		if u.InTransit != "" {
			line += " -> " + u.InTransit
		}
		if len(u.Cargo) > 0 {
			line += fmt.Sprintf(" cargo=%d", len(u.Cargo))
		}
		if len(u.BuildQueue) > 0 {
			line += fmt.Sprintf(" queue=%d", len(u.BuildQueue))
		}
		fmt.Println(line)
	}
	if len(s.TurnLog) > 0 {
		fmt.Println("Last turn:")
		for _, l := range s.TurnLog {
			fmt.Println("  " + l.Text)
		}
	}
}

func doGet(path string) {
	if body, ok := get(path); ok {
		fmt.Printf("Response: %s\n", string(body))
	}
}

// --- Transport ---

func get(path string) ([]byte, bool) {
	u := ServerURL + "/games/" + url.PathEscape(GameID) + path + "?code=" + url.QueryEscape(JoinCode)
	resp, err := client.Get(u)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, false
	}
	return body, true
}

// send posts an order with the join code attached and prints the reply.
func send(path string, payload map[string]any) bool {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["code"] = JoinCode
	data, _ := json.Marshal(payload)

	resp, err := client.Post(ServerURL+"/games/"+url.PathEscape(GameID)+path, "application/json", bytes.NewBuffer(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Response: %s\n", strings.TrimSpace(string(body)))
	return resp.StatusCode == http.StatusOK
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func orDraw(w string) string {
	if w == "" {
		return "draw"
	}
	return w
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
