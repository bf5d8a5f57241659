package square

// Money описывает денежную сумму в минимальных единицах валюты.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// Location описывает точку продавца.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
	Status   string `json:"status,omitempty"`
}

// TimecardBreak описывает перерыв в смене.
type TimecardBreak struct {
	ID      string `json:"id,omitempty"`
	StartAt string `json:"start_at,omitempty"`
	EndAt   string `json:"end_at,omitempty"`
	Name    string `json:"name,omitempty"`
	IsPaid  bool   `json:"is_paid,omitempty"`
}

// TimecardWage описывает ставку сотрудника на смене.
type TimecardWage struct {
	Title       string `json:"title,omitempty"`
	HourlyRate  *Money `json:"hourly_rate,omitempty"`
	TipEligible *bool  `json:"tip_eligible,omitempty"`
}

// Timecard описывает смену из Square Labor API.
type Timecard struct {
	ID                   string          `json:"id"`
	LocationID           string          `json:"location_id,omitempty"`
	TeamMemberID         string          `json:"team_member_id,omitempty"`
	StartAt              string          `json:"start_at,omitempty"`
	EndAt                string          `json:"end_at,omitempty"`
	Wage                 *TimecardWage   `json:"wage,omitempty"`
	Breaks               []TimecardBreak `json:"breaks,omitempty"`
	Status               string          `json:"status,omitempty"`
	DeclaredCashTipMoney *Money          `json:"declared_cash_tip_money,omitempty"`
}

// Payment описывает платёж Square.
type Payment struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at,omitempty"`
	Status       string `json:"status,omitempty"`
	LocationID   string `json:"location_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	TeamMemberID string `json:"team_member_id,omitempty"`
	TipMoney     *Money `json:"tip_money,omitempty"`
	AmountMoney  *Money `json:"amount_money,omitempty"`
}

// OrderServiceCharge описывает сервисный сбор заказа.
type OrderServiceCharge struct {
	UID          string `json:"uid,omitempty"`
	Name         string `json:"name,omitempty"`
	Type         string `json:"type,omitempty"`
	AppliedMoney *Money `json:"applied_money,omitempty"`
}

// Order описывает заказ Square в объёме, нужном для расчёта сборов.
type Order struct {
	ID             string               `json:"id"`
	LocationID     string               `json:"location_id,omitempty"`
	ServiceCharges []OrderServiceCharge `json:"service_charges,omitempty"`
}

// TeamMember описывает сотрудника продавца.
type TeamMember struct {
	ID         string `json:"id"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Error описывает ошибку в ответе Square.
type Error struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
}

type errorResponse struct {
	Errors []Error `json:"errors"`
}

type listLocationsResponse struct {
	Locations []Location `json:"locations"`
}

type timeRange struct {
	StartAt string `json:"start_at,omitempty"`
	EndAt   string `json:"end_at,omitempty"`
}

type timecardFilter struct {
	LocationIDs []string   `json:"location_ids,omitempty"`
	Start       *timeRange `json:"start,omitempty"`
	End         *timeRange `json:"end,omitempty"`
}

type timecardQuery struct {
	Filter timecardFilter `json:"filter"`
}

type searchTimecardsRequest struct {
	Query  timecardQuery `json:"query"`
	Limit  int           `json:"limit,omitempty"`
	Cursor string        `json:"cursor,omitempty"`
}

type searchTimecardsResponse struct {
	Timecards []Timecard `json:"timecards"`
	Cursor    string     `json:"cursor,omitempty"`
}

type listPaymentsResponse struct {
	Payments []Payment `json:"payments"`
	Cursor   string    `json:"cursor,omitempty"`
}

type getOrderResponse struct {
	Order *Order `json:"order"`
}

type teamMemberFilter struct {
	LocationIDs []string `json:"location_ids,omitempty"`
	Status      string   `json:"status,omitempty"`
}

type teamMemberQuery struct {
	Filter teamMemberFilter `json:"filter"`
}

type searchTeamMembersRequest struct {
	Query  teamMemberQuery `json:"query"`
	Limit  int             `json:"limit,omitempty"`
	Cursor string          `json:"cursor,omitempty"`
}

type searchTeamMembersResponse struct {
	TeamMembers []TeamMember `json:"team_members"`
	Cursor      string       `json:"cursor,omitempty"`
}
