package server

import "atmdapp/internal/dapp"

type profileView struct {
	HolderName            string `json:"holderName"`
	Education             string `json:"education"`
	CreditScore           int    `json:"creditScore"`
	Loans                 string `json:"loans"`
	FixedDeposit          string `json:"fixedDeposit"`
	AverageMonthlyBalance string `json:"averageMonthlyBalance"`
	FatherName            string `json:"fatherName"`
	MotherName            string `json:"motherName"`
}

type notificationView struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Success bool   `json:"success"`
}

// stateView is what both the page and the JSON API expose of a session.
type stateView struct {
	Region        string            `json:"region"`
	Account       string            `json:"account,omitempty"`
	Balance       string            `json:"balance,omitempty"`
	BalanceStatus string            `json:"balanceStatus"`
	BalanceError  string            `json:"balanceError,omitempty"`
	Unit          string            `json:"unit"`
	Pending       int               `json:"pending"`
	ConnectError  string            `json:"connectError,omitempty"`
	Profile       *profileView      `json:"profile,omitempty"`
	Notification  *notificationView `json:"notification,omitempty"`
}

func balanceStatusName(s dapp.BalanceStatus) string {
	switch s {
	case dapp.BalanceLoading:
		return "loading"
	case dapp.BalanceLoaded:
		return "loaded"
	case dapp.BalanceFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s *Server) view(st dapp.State) stateView {
	v := stateView{
		Region:        st.Region().String(),
		BalanceStatus: balanceStatusName(st.Balance.Status),
		BalanceError:  st.Balance.Err,
		Unit:          s.cfg.Contract.Unit,
		Pending:       st.Pending,
		ConnectError:  st.ConnectError,
	}
	if st.Region() != dapp.RegionDashboard {
		return v
	}

	v.Account = st.Account.Hex()
	v.Balance = dapp.FormatUnits(st.Balance.Value, s.cfg.Contract.DisplayDecimals)
	if p := st.Profile; p != nil {
		v.Profile = &profileView{
			HolderName:            p.HolderName,
			Education:             p.Education,
			CreditScore:           p.CreditScore,
			Loans:                 p.Loans.String(),
			FixedDeposit:          p.FixedDeposit.String(),
			AverageMonthlyBalance: p.AverageMonthlyBalance.String(),
			FatherName:            p.FatherName,
			MotherName:            p.MotherName,
		}
	}
	if n := st.Notification; n.Visible {
		v.Notification = &notificationView{
			ID:      n.ID,
			Text:    n.Text(s.cfg.Contract.Unit),
			Success: n.Success,
		}
	}
	return v
}
