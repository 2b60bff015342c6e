package resources

import "github.com/ambiyansyah-risyal/authclient"

// Container holds every repository. Business repositories share the
// business factory's client; Auth and Users share the identity factory's.
type Container struct {
	Tables        *Tables
	Rows          *Rows
	Cells         *Cells
	Restaurants   *Restaurants
	Organizations *Organizations
	BudgetItems   *BudgetItems
	Users         *Users
	Auth          *Auth
}

// NewContainer builds the repositories. A nil identity factory means the
// identity API is served from the business origin.
func NewContainer(business, identity *authclient.Factory) *Container {
	if identity == nil {
		identity = business
	}
	api := business.Client()
	auth := identity.Client()

	return &Container{
		Tables:        NewTables(api),
		Rows:          NewRows(api),
		Cells:         NewCells(api),
		Restaurants:   NewRestaurants(api),
		Organizations: NewOrganizations(api),
		BudgetItems:   NewBudgetItems(api),
		Users:         NewUsers(auth),
		Auth:          NewAuth(auth),
	}
}
