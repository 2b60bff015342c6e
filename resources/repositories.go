package resources

import (
	"context"

	"github.com/ambiyansyah-risyal/authclient"
)

type Tables struct {
	client *authclient.Client
}

func NewTables(client *authclient.Client) *Tables {
	return &Tables{client: client}
}

func (r *Tables) List(ctx context.Context) ([]Table, error) {
	var out []Table
	err := r.client.GetJSON(ctx, TableList, nil, nil, &out)
	return out, err
}

// Create asks the backend to create a table filled with empty data.
func (r *Tables) Create(ctx context.Context, table NewTable) error {
	_, err := r.client.Post(ctx, TableCreate, nil, table)
	return err
}

// Editable returns the editable daily table selected by params.
func (r *Tables) Editable(ctx context.Context, params TableParams) (*Table, error) {
	var out Table
	if err := r.client.GetJSON(ctx, TableItem, nil, params.query(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Rows struct {
	client *authclient.Client
}

func NewRows(client *authclient.Client) *Rows {
	return &Rows{client: client}
}

func (r *Rows) Get(ctx context.Context, id int64) (*Row, error) {
	var out Row
	if err := r.client.GetJSON(ctx, RowItem, byID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Rows) Update(ctx context.Context, id int64, row Row) error {
	_, err := r.client.Put(ctx, RowItem, byID(id), row)
	return err
}

func (r *Rows) Delete(ctx context.Context, id int64) error {
	_, err := r.client.Delete(ctx, RowItem, byID(id))
	return err
}

// Cells edits fact and plan values of a table.
type Cells struct {
	client *authclient.Client
}

func NewCells(client *authclient.Client) *Cells {
	return &Cells{client: client}
}

// UpdateFact sets the fact value of cell id and returns the recalculated
// cells.
func (r *Cells) UpdateFact(ctx context.Context, id int64, value float64) ([]Cell, error) {
	var out []Cell
	err := r.client.PutJSON(ctx, FactUpdate, byID(id), value, &out)
	return out, err
}

func (r *Cells) UpdatePlan(ctx context.Context, change PlanChange) ([]Cell, error) {
	var out []Cell
	err := r.client.PutJSON(ctx, PlanUpdate, nil, change, &out)
	return out, err
}

func (r *Cells) CreatePlan(ctx context.Context, plan Plan) error {
	_, err := r.client.Post(ctx, PlanList, nil, plan)
	return err
}

func (r *Cells) DeletePlan(ctx context.Context, id int64) error {
	_, err := r.client.Delete(ctx, PlanItem, byID(id))
	return err
}

type Restaurants struct {
	client *authclient.Client
}

func NewRestaurants(client *authclient.Client) *Restaurants {
	return &Restaurants{client: client}
}

func (r *Restaurants) List(ctx context.Context) ([]Restaurant, error) {
	var out []Restaurant
	err := r.client.GetJSON(ctx, RestaurantList, nil, nil, &out)
	return out, err
}

func (r *Restaurants) Get(ctx context.Context, id int64) (*Restaurant, error) {
	var out Restaurant
	if err := r.client.GetJSON(ctx, RestaurantItem, byID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Restaurants) Create(ctx context.Context, restaurant Restaurant) error {
	_, err := r.client.Post(ctx, RestaurantList, nil, restaurant)
	return err
}

func (r *Restaurants) Update(ctx context.Context, id int64, restaurant Restaurant) error {
	_, err := r.client.Put(ctx, RestaurantItem, byID(id), restaurant)
	return err
}

func (r *Restaurants) Delete(ctx context.Context, id int64) error {
	_, err := r.client.Delete(ctx, RestaurantItem, byID(id))
	return err
}

type Organizations struct {
	client *authclient.Client
}

func NewOrganizations(client *authclient.Client) *Organizations {
	return &Organizations{client: client}
}

// List returns organizations matching filter, which is sent as the query
// string.
func (r *Organizations) List(ctx context.Context, filter authclient.Params) ([]Organization, error) {
	var out []Organization
	err := r.client.GetJSON(ctx, OrganizationList, nil, filter, &out)
	return out, err
}

// Mine returns the organizations of the signed-in user.
func (r *Organizations) Mine(ctx context.Context) ([]Organization, error) {
	var out []Organization
	err := r.client.GetJSON(ctx, OrganizationMine, nil, nil, &out)
	return out, err
}

func (r *Organizations) Get(ctx context.Context, id int64) (*Organization, error) {
	var out Organization
	if err := r.client.GetJSON(ctx, OrganizationItem, byID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Organizations) Create(ctx context.Context, org Organization) (*Organization, error) {
	var out Organization
	if err := r.client.PostJSON(ctx, OrganizationList, nil, org, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Organizations) Update(ctx context.Context, id int64, org Organization) error {
	_, err := r.client.Put(ctx, OrganizationItem, byID(id), org)
	return err
}

func (r *Organizations) Delete(ctx context.Context, id int64) error {
	_, err := r.client.Delete(ctx, OrganizationItem, byID(id))
	return err
}

func (r *Organizations) Tables(ctx context.Context, id int64) ([]Table, error) {
	var out []Table
	err := r.client.GetJSON(ctx, OrganizationTableList, byID(id), nil, &out)
	return out, err
}

type BudgetItems struct {
	client *authclient.Client
}

func NewBudgetItems(client *authclient.Client) *BudgetItems {
	return &BudgetItems{client: client}
}

func (r *BudgetItems) List(ctx context.Context, filter authclient.Params) ([]BudgetItem, error) {
	var out []BudgetItem
	err := r.client.GetJSON(ctx, BudgetItemList, nil, filter, &out)
	return out, err
}

func (r *BudgetItems) Get(ctx context.Context, id int64) (*BudgetItem, error) {
	var out BudgetItem
	if err := r.client.GetJSON(ctx, BudgetItemItem, byID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BudgetItems) Create(ctx context.Context, item BudgetItem) (*BudgetItem, error) {
	var out BudgetItem
	if err := r.client.PostJSON(ctx, BudgetItemList, nil, item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BudgetItems) Update(ctx context.Context, id int64, item BudgetItem) error {
	_, err := r.client.Put(ctx, BudgetItemItem, byID(id), item)
	return err
}

// UpdateList replaces the order and nesting of many items at once.
func (r *BudgetItems) UpdateList(ctx context.Context, items []BudgetItem) error {
	_, err := r.client.Put(ctx, BudgetItemBatch, nil, items)
	return err
}

func (r *BudgetItems) Delete(ctx context.Context, id int64) error {
	_, err := r.client.Delete(ctx, BudgetItemItem, byID(id))
	return err
}

type Users struct {
	client *authclient.Client
}

func NewUsers(client *authclient.Client) *Users {
	return &Users{client: client}
}

func (r *Users) Get(ctx context.Context, id int64) (*User, error) {
	var out User
	if err := r.client.GetJSON(ctx, UserItem, byID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
