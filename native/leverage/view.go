package leverage

import "math/big"

// InfoView is the JSON rendering of the aggregate record. Amounts are decimal
// strings so wide values survive JSON clients.
type InfoView struct {
	Balance         string `json:"balance" yaml:"balance"`
	Last            string `json:"last" yaml:"last"`
	Debt            string `json:"debt" yaml:"debt"`
	LP              string `json:"lp" yaml:"lp"`
	Ceiling         string `json:"ceiling" yaml:"ceiling"`
	Accrued         string `json:"accrued" yaml:"accrued"`
	RewardPerBlock  string `json:"rewardPerBlock" yaml:"rewardPerBlock"`
	LastRewardBlock uint64 `json:"lastRewardBlock" yaml:"lastRewardBlock"`
	AccPerShare     string `json:"accPerShare" yaml:"accPerShare"`
}

// UserView is the JSON rendering of a user record.
type UserView struct {
	Address    string `json:"address" yaml:"address"`
	Balance    string `json:"balance" yaml:"balance"`
	Last       string `json:"last" yaml:"last"`
	Debt       string `json:"debt" yaml:"debt"`
	LP         string `json:"lp" yaml:"lp"`
	RewardDebt string `json:"rewardDebt" yaml:"rewardDebt"`
	// Equity is present only when a collateral index was supplied.
	Equity string `json:"equity,omitempty" yaml:"equity,omitempty"`
}

// NewInfoView renders info.
func NewInfoView(info *Info) InfoView {
	return InfoView{
		Balance:         amountString(info.Balance),
		Last:            amountString(info.Last),
		Debt:            amountString(info.Debt),
		LP:              amountString(info.LP),
		Ceiling:         amountString(info.Ceiling),
		Accrued:         amountString(info.Accrued),
		RewardPerBlock:  amountString(info.RewardPerBlock),
		LastRewardBlock: info.LastRewardBlock,
		AccPerShare:     amountString(info.AccPerShare),
	}
}

// NewUserView renders user, adding its equity when rates is non-nil.
func NewUserView(user *UserInfo, rates ExchangeRateAdapter) UserView {
	view := UserView{
		Address:    user.Address.String(),
		Balance:    amountString(user.Balance),
		Last:       amountString(user.Last),
		Debt:       amountString(user.Debt),
		LP:         amountString(user.LP),
		RewardDebt: amountString(user.RewardDebt),
	}
	if rates != nil {
		view.Equity = equity(rates, user).String()
	}
	return view
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
