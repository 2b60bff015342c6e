package resources

import (
	"time"

	"github.com/ambiyansyah-risyal/authclient"
)

// Dates are kept as the backend renders them (ISO-8601, often without a
// zone), so they are strings rather than time.Time.

type RowType string

const (
	RowAutoSum    RowType = "autoSum"
	RowEditable   RowType = "editable"
	RowCalculated RowType = "calculated"
	RowTotal      RowType = "total"
	RowImport     RowType = "import"
)

type BudgetItemType string

const (
	BudgetItemEditable   BudgetItemType = "editable"
	BudgetItemTotal      BudgetItemType = "total"
	BudgetItemSubTotal   BudgetItemType = "subTotal"
	BudgetItemCalculated BudgetItemType = "calculated"
	BudgetItemImport     BudgetItemType = "import"
)

// NotificationChannel selects how a temporary login code is delivered.
type NotificationChannel string

const (
	ChannelNone NotificationChannel = "none"
	ChannelSMS  NotificationChannel = "sms"
)

type UserStatus string

const (
	UserRegistered UserStatus = "registered"
	UserConfirmed  UserStatus = "confirmed"
)

type Organization struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	IsActive   bool   `json:"isActive"`
	ExternalID *int64 `json:"externalId"`
}

type Restaurant struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	IsActive bool   `json:"isActive"`
}

type BudgetItem struct {
	ID                    int64          `json:"id,omitempty"`
	Title                 *string        `json:"title"`
	ReadOnly              bool           `json:"readOnly,omitempty"`
	Type                  BudgetItemType `json:"type"`
	BudgetItemFinanceType string         `json:"budgetItemFinanceType"`
	Sort                  int            `json:"sort"`
	Formula               string         `json:"formula"`
	Color                 *string        `json:"color"`
	ParentID              *int64         `json:"parentId"`
}

type Cell struct {
	FactID   int64   `json:"factId"`
	PlanID   int64   `json:"planId"`
	Key      string  `json:"key"`
	Value    float64 `json:"value"`
	DateFrom string  `json:"dateFrom"`
	DateTo   string  `json:"dateTo"`
	CellType RowType `json:"cellType"`
	Color    string  `json:"color"`
}

type Row struct {
	ID           int64   `json:"id,omitempty"`
	Title        string  `json:"title"`
	PlanValue    float64 `json:"planValue"`
	PlanID       int64   `json:"planId"`
	Cells        []Cell  `json:"cells"`
	Color        string  `json:"color"`
	RowType      RowType `json:"rowType"`
	Children     []Row   `json:"children"`
	BudgetItemID int64   `json:"budgetItemId"`
}

type Column struct {
	Title        string  `json:"title"`
	DateFrom     string  `json:"dateFrom"`
	DateTo       string  `json:"dateTo"`
	ColumnType   RowType `json:"columnType"`
	ColumnPeriod string  `json:"columnPeriod"`
	Color        string  `json:"color"`
}

type TableColor struct {
	ColumnsBase  string `json:"colorColumnsBase"`
	ColumnsPlan  string `json:"colorColumnsPlan"`
	ColumnsTotal string `json:"colorColumnsTotal"`
	RowBase      string `json:"colorRowBase"`
}

type TableQuery struct {
	Organization   Organization `json:"organization"`
	DateFrom       string       `json:"dateFrom"`
	DateTo         string       `json:"dateTo"`
	GroupingByName string       `json:"groupingByName"`
	ColumnPlan     bool         `json:"columnPlan"`
	// The backend spells this field with a typo.
	ColumnTotalForBudgetItem bool       `json:"columnTotalForBungetItem"`
	RowTotal                 float64    `json:"rowTotal"`
	TableColor               TableColor `json:"tableColor"`
}

type Table struct {
	ID         int64      `json:"id"`
	TableQuery TableQuery `json:"tableQuery"`
	Columns    []Column   `json:"columns"`
	Rows       []Row      `json:"rows"`
}

// TableParams selects the editable daily table of an organization.
type TableParams struct {
	OrganizationID int64
	Date           time.Time
}

func (p TableParams) query() authclient.Params {
	q := authclient.Params{}
	if p.OrganizationID != 0 {
		q["organizationId"] = p.OrganizationID
	}
	if !p.Date.IsZero() {
		q["dateTime"] = p.Date.Format("2006-01-02")
	}
	return q
}

// NewTable is the body of Tables.Create.
type NewTable struct {
	DateTime       string `json:"dateTime"`
	OrganizationID int64  `json:"organizationId"`
}

type Plan struct {
	OrganizationID int64   `json:"organizationId"`
	BudgetItemID   int64   `json:"budgetItemId"`
	Value          float64 `json:"value"`
	DateTime       string  `json:"dateTime"`
}

// PlanChange updates one plan value, optionally spreading it over the month.
type PlanChange struct {
	PlanID    int64   `json:"planId"`
	FillMonth bool    `json:"fillMonth"`
	Value     float64 `json:"value"`
}

type User struct {
	ID         int64      `json:"id"`
	ExternalID *string    `json:"external_id"`
	Login      string     `json:"login"`
	Name       *string    `json:"name"`
	Patron     *string    `json:"patron"`
	Surname    *string    `json:"surname"`
	Birthday   *string    `json:"birthday"`
	Phone      *string    `json:"phone"`
	Status     UserStatus `json:"status"`
	Type       string     `json:"type,omitempty"`
}

// Authentication carries either a password or a temporary code. Login
// picks the endpoint from which one is set.
type Authentication struct {
	Login    string `json:"login,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

type Registration struct {
	Login    string              `json:"login,omitempty"`
	Password string              `json:"password,omitempty"`
	Phone    string              `json:"phone,omitempty"`
	Method   NotificationChannel `json:"method,omitempty"`
	Name     string              `json:"name,omitempty"`
	Surname  string              `json:"surname,omitempty"`
	Patron   string              `json:"patron,omitempty"`
}

// SuccessfulAuthentication is the identity API's login response.
type SuccessfulAuthentication struct {
	UserID       int64  `json:"user_id"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// Session converts the response for Coordinator.SetSession.
func (a SuccessfulAuthentication) Session() authclient.SessionResult {
	return authclient.SessionResult{
		AccessToken:  a.Token,
		RefreshToken: a.RefreshToken,
		ExpiresIn:    time.Duration(a.ExpiresIn) * time.Second,
	}
}
