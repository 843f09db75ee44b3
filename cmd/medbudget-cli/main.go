// medbudget-cli is the terminal frontend: it drives the session machine
// against a running gateway server and keeps a health indicator fresh in
// the background.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"medbudget/internal/config"
	"medbudget/internal/core"
	"medbudget/internal/gateway"
	"medbudget/internal/log"
	"medbudget/internal/session"
)

func main() {
	_ = godotenv.Load()

	// Log to stderr so the interactive output stays clean.
	logger := log.New(log.Config{
		Component: log.ComponentSession,
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}),
	})
	log.SetDefault(logger)

	cfg := config.Load()

	gw := gateway.NewHTTPClient(cfg.ServerURL)
	machine := session.NewMachine(gw, session.NewFileStore(cfg.SessionFile))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &app{machine: machine, out: os.Stdout}

	if _, err := machine.Restore(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "restore session: %v\n", err)
	}

	// Poll the gateway health in the background. The ticker stops when the
	// REPL exits and cancels the context.
	go app.pollHealth(ctx, cfg.HealthInterval)

	app.printWelcome()
	app.run(ctx)
}

type app struct {
	machine *session.Machine
	out     *os.File
	health  core.Health
}

func (a *app) pollHealth(ctx context.Context, interval time.Duration) {
	a.health = a.machine.Health(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			previous := a.health.Status
			a.health = a.machine.Health(ctx)
			if a.health.Status != previous {
				fmt.Fprintf(a.out, "\n[server %s] %s\n> ", a.health.Status, a.health.Message)
			}
		}
	}
}

func (a *app) printWelcome() {
	fmt.Fprintln(a.out, "medbudget - gestione finanze dello studio medico")
	fmt.Fprintln(a.out, "Digita 'help' per l'elenco dei comandi.")
}

func (a *app) run(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprintf(a.out, "[%s]> ", a.machine.Phase())
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := a.dispatch(ctx, cmd, args); err != nil {
			fmt.Fprintf(a.out, "errore: %v\n", err)
		}
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		a.printHelp()
		return nil
	case "health":
		h := a.machine.Health(ctx)
		if h.Status == core.StatusOnline {
			fmt.Fprintf(a.out, "server online (%d ms)\n", h.LatencyMs)
		} else {
			fmt.Fprintf(a.out, "server offline: %s\n", h.Message)
		}
		return nil
	case "register", "login":
		if len(args) != 2 {
			return fmt.Errorf("uso: %s <username> <password>", cmd)
		}
		var phase session.Phase
		var err error
		if cmd == "register" {
			phase, err = a.machine.Register(ctx, args[0], args[1])
		} else {
			phase, err = a.machine.Login(ctx, args[0], args[1])
		}
		if err != nil {
			return err
		}
		if phase == session.PhaseNeedsProfile {
			fmt.Fprintln(a.out, "Benvenuto! Completa il profilo con: profile <nome> <cognome> <specializzazione> <studio>")
		} else {
			fmt.Fprintln(a.out, "Bentornato!")
		}
		return nil
	case "logout":
		a.machine.Logout()
		fmt.Fprintln(a.out, "Sessione chiusa.")
		return nil
	case "profile":
		if len(args) < 4 {
			return errors.New("uso: profile <nome> <cognome> <specializzazione> <studio>")
		}
		_, err := a.machine.SaveProfile(ctx, core.Profile{
			FirstName:      args[0],
			LastName:       args[1],
			Specialization: args[2],
			StudioName:     strings.Join(args[3:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Profilo salvato.")
		return nil
	case "add":
		return a.addTransaction(ctx, args)
	case "list":
		return a.listTransactions(args)
	case "summary":
		sum := a.machine.Summary()
		fmt.Fprintf(a.out, "Entrate: %s\n", core.FormatEuros(sum.TotalIncome))
		fmt.Fprintf(a.out, "Uscite:  %s\n", core.FormatEuros(sum.TotalExpenses))
		fmt.Fprintf(a.out, "Saldo:   %s\n", core.FormatEuros(sum.Balance))
		return nil
	case "categories":
		for _, ct := range core.CategoryBreakdown(a.machine.Transactions(), core.Expense) {
			fmt.Fprintf(a.out, "%-30s %s\n", ct.Category, core.FormatEuros(ct.Total))
		}
		return nil
	case "trend":
		for _, b := range core.MonthlyTrend(a.machine.Transactions(), time.Now(), 6) {
			fmt.Fprintf(a.out, "%-8s %s\n", b.Label, core.FormatEuros(b.Total))
		}
		return nil
	case "insights":
		insights, err := a.machine.Insights(ctx)
		if err != nil {
			return err
		}
		for _, in := range insights {
			fmt.Fprintf(a.out, "[%s] %s\n  %s\n", in.Type, in.Title, in.Content)
		}
		return nil
	case "refresh":
		return a.machine.Refresh(ctx)
	default:
		return fmt.Errorf("comando sconosciuto: %s", cmd)
	}
}

// add <income|expense> <amount> <date YYYY-MM-DD> [category] [description...]
func (a *app) addTransaction(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("uso: add <income|expense> <importo> <data YYYY-MM-DD> [categoria] [descrizione]")
	}

	var typ core.TransactionType
	switch strings.ToLower(args[0]) {
	case "income", "entrata":
		typ = core.Income
	case "expense", "uscita":
		typ = core.Expense
	default:
		return core.ErrInvalidType
	}

	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return err
	}

	date, err := time.Parse("2006-01-02", args[2])
	if err != nil {
		return core.ErrInvalidDate
	}

	in := core.TransactionInput{Type: typ, Amount: amount, Date: date}
	if len(args) > 3 {
		in.Category = args[3]
	}
	if len(args) > 4 {
		in.Description = strings.Join(args[4:], " ")
	}

	txn, err := a.machine.AddTransaction(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registrato: %s %s (%s)\n",
		txn.Category, core.FormatEuros(txn.Amount), txn.Date.Format("2006-01-02"))
	return nil
}

// list [search term...] — optionally filtered by "tipo:income" / "tipo:expense"
func (a *app) listTransactions(args []string) error {
	typeFilter := core.TypeFilterAll
	var terms []string
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "tipo:income", "tipo:entrata":
			typeFilter = string(core.Income)
		case "tipo:expense", "tipo:uscita":
			typeFilter = string(core.Expense)
		default:
			terms = append(terms, arg)
		}
	}

	txns := core.Filter(a.machine.Transactions(), strings.Join(terms, " "), typeFilter)
	if len(txns) == 0 {
		fmt.Fprintln(a.out, "Nessun movimento.")
		return nil
	}
	for _, t := range txns {
		sign := "+"
		if t.Type == core.Expense {
			sign = "-"
		}
		fmt.Fprintf(a.out, "%s %s%-12s %-25s %s\n",
			t.Date.Format("2006-01-02"), sign, core.FormatEuros(t.Amount), t.Category, t.Description)
	}
	return nil
}

func (a *app) printHelp() {
	fmt.Fprint(a.out, `Comandi:
  register <username> <password>   crea un account
  login <username> <password>      accedi
  logout                           chiudi la sessione
  profile <nome> <cognome> <spec> <studio>
  add <income|expense> <importo> <data> [categoria] [descrizione]
  list [tipo:income|tipo:expense] [testo]
  summary                          totali e saldo
  categories                       uscite per categoria
  trend                            uscite degli ultimi 6 mesi
  insights                         consigli AI
  refresh                          ricarica i dati dal server
  health                           stato del server
  quit                             esci
`)
}
