package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"atmdapp/internal/dapp"
	"atmdapp/internal/hmacauth"
)

const pageTitle = "Welcome to the Metacrafters ATM!"

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
{{- if .Reload}}
<meta http-equiv="refresh" content="{{.Reload}}">
{{- end}}
<title>Metacrafters ATM</title>
<style>
body { font-family: sans-serif; text-align: center; background: #fafafa; }
h1 { color: #8B4513; }
.notification { max-width: 480px; margin: 12px auto; padding: 10px; border-radius: 4px; color: #fff; }
.notification.success { background: #4CAF50; }
.notification.error { background: #f44336; }
.profile { display: inline-block; text-align: left; }
.error { color: #f44336; }
form { display: inline-block; margin: 4px; }
</style>
</head>
<body>
<header><h1>{{.Title}}</h1></header>
<main>
{{- with .State}}
{{- if .Notification}}
<div class="notification {{if .Notification.Success}}success{{else}}error{{end}}" id="notification">{{.Notification.Text}}</div>
{{- end}}
{{- if eq .Region "detecting"}}
<p>Detecting wallet...</p>
{{- else if eq .Region "install"}}
<p>Please install a wallet in order to use this ATM.</p>
{{- else if eq .Region "connect"}}
<form method="post" action="/connect"><button type="submit">Please connect your wallet</button></form>
{{- if .ConnectError}}
<p class="error">{{.ConnectError}}</p>
{{- end}}
{{- else}}
<p>Your Account: {{.Account}}</p>
{{- if eq .BalanceStatus "loaded"}}
<p>Your Balance: {{.Balance}} {{.Unit}}</p>
{{- else if eq .BalanceStatus "failed"}}
<p class="error">{{.BalanceError}}</p>
<form method="post" action="/balance"><button type="submit">Retry</button></form>
{{- else}}
<p>Loading balance...</p>
{{- end}}
{{- with .Profile}}
<div class="profile">
<p>Holder Name: {{.HolderName}}</p>
<p>Education: {{.Education}}</p>
<p>Credit Score: {{.CreditScore}}</p>
<p>Loans: {{.Loans}} {{$.State.Unit}}</p>
<p>Fixed Deposit: {{.FixedDeposit}} {{$.State.Unit}}</p>
<p>Average Monthly Balance: {{.AverageMonthlyBalance}} {{$.State.Unit}}</p>
<p>Father's Name: {{.FatherName}}</p>
<p>Mother's Name: {{.MotherName}}</p>
</div>
{{- end}}
<div>
<form method="post" action="/deposit">
<input type="hidden" name="nonce" value="{{$.Nonce}}">
<input type="hidden" name="amount" value="{{$.DepositAmount}}">
<button type="submit">Deposit {{$.DepositAmount}} {{.Unit}}</button>
</form>
<form method="post" action="/withdraw">
<input type="hidden" name="nonce" value="{{$.Nonce}}">
<input type="hidden" name="amount" value="{{$.WithdrawAmount}}">
<button type="submit">Withdraw {{$.WithdrawAmount}} {{.Unit}}</button>
</form>
</div>
{{- if .Pending}}
<p>Transactions pending: {{.Pending}}</p>
{{- end}}
{{- end}}
{{- end}}
</main>
</body>
</html>
`))

type pageData struct {
	Title          string
	Reload         int
	State          stateView
	Nonce          string
	DepositAmount  string
	WithdrawAmount string
}

// reloadAfter returns how many seconds the page waits before reloading
// itself, or 0 when nothing on it changes without the user. Loading balances
// and pending transactions reload every second; a visible notification
// reloads once it is due to be dismissed.
func reloadAfter(st dapp.State, dismissAt time.Time, notified bool, now time.Time) int {
	secs := 0
	if st.Balance.Status == dapp.BalanceLoading || st.Pending > 0 {
		secs = 1
	}
	if notified && st.Notification.Visible {
		due := int((dismissAt.Sub(now) + time.Second - 1) / time.Second)
		if due < 1 {
			due = 1
		}
		if secs == 0 || due < secs {
			secs = due
		}
	}
	return secs
}

func (s *Server) render(w http.ResponseWriter, sess *dapp.Session, st dapp.State) {
	dismissAt, notified := sess.NotificationDeadline()
	data := pageData{
		Title:          pageTitle,
		Reload:         reloadAfter(st, dismissAt, notified, s.clock.Now()),
		State:          s.view(st),
		Nonce:          uuid.NewString(),
		DepositAmount:  s.depositAmount.String(),
		WithdrawAmount: s.withdrawAmount.String(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.log.Error("render page", zap.Error(err))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess := s.session(r)
	s.render(w, sess, s.ensureBalance(r.Context(), sess))
}

// back sends the browser to the page after a form post.
func back(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleConnectForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.connect(r.Context(), s.session(r))
	back(w, r)
}

func (s *Server) handleBalanceForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.refreshBalance(r.Context(), s.session(r))
	back(w, r)
}

// handleTxForm runs a deposit or withdrawal posted from the page. The form
// nonce makes a resubmitted form replay its first outcome. The redirect
// waits at most FormWait; a slower transaction keeps running and shows up
// as pending until it settles.
func (s *Server) handleTxForm(kind dapp.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		amount := s.defaultAmount(kind)
		if raw := r.PostFormValue("amount"); raw != "" {
			parsed, err := parseAmount(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			amount = parsed
		}

		var nonce string
		if raw := r.PostFormValue("nonce"); raw != "" {
			nonce = "form:" + string(kind) + ":" + raw
		}

		ctx := context.WithoutCancel(r.Context())
		sid, sess := hmacauth.SessionID(ctx), s.session(r)

		done := make(chan struct{})
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			defer close(done)
			_, _, err := s.transact(ctx, sid, sess, kind, amount, nonce, func(dapp.TxResult, dapp.State) (int, []byte) {
				return http.StatusSeeOther, nil
			})
			if err != nil && !errors.Is(err, errNotConnected) && !errors.Is(err, errInFlight) {
				s.log.Error("form transaction", zap.String("kind", string(kind)), zap.Error(err))
			}
		}()

		wait := time.NewTimer(s.cfg.Service.FormWait)
		defer wait.Stop()
		select {
		case <-done:
		case <-wait.C:
		}
		back(w, r)
	}
}
