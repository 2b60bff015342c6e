// Package resources maps the backend's REST resources onto typed
// repositories built on an authclient.Client.
package resources

import "github.com/ambiyansyah-risyal/authclient"

// Business API endpoints.
const (
	TableList   authclient.Endpoint = "/api/Tables"
	TableCreate authclient.Endpoint = "/api/Tables/CreateTestData"
	TableItem   authclient.Endpoint = "/api/Tables/GetEditableDaily"

	RowItem authclient.Endpoint = "/api/Rows/{id}"

	CellList   authclient.Endpoint = "/api/Cells"
	CellItem   authclient.Endpoint = "/api/Cells/{id}"
	FactUpdate authclient.Endpoint = "/api/Tables/FactUpdate/{id}"
	PlanUpdate authclient.Endpoint = "/api/Plans/PlanUpdate"
	PlanList   authclient.Endpoint = "/api/Plans"
	PlanItem   authclient.Endpoint = "/api/Plans/{id}"

	RestaurantList authclient.Endpoint = "/api/Restaurants"
	RestaurantItem authclient.Endpoint = "/api/Restaurants/{id}"

	OrganizationList      authclient.Endpoint = "/api/Organizations"
	OrganizationItem      authclient.Endpoint = "/api/Organizations/{id}"
	OrganizationMine      authclient.Endpoint = "/api/Organizations/My"
	OrganizationTableList authclient.Endpoint = "/api/Organizations/{id}/Tables"

	BudgetItemList  authclient.Endpoint = "/api/BudgetItems"
	BudgetItemItem  authclient.Endpoint = "/api/BudgetItems/{id}"
	BudgetItemBatch authclient.Endpoint = "/api/BudgetItems/List"
)

// Identity API endpoints, served from the auth origin.
const (
	UserItem                authclient.Endpoint = "/users/{id}"
	Register                authclient.Endpoint = "/register"
	Login                   authclient.Endpoint = "/login"
	RequestTemporaryToken   authclient.Endpoint = "/login/request_token"
	LoginWithTemporaryToken authclient.Endpoint = "/login/with_token"
	RefreshToken            authclient.Endpoint = "/refresh_token"
	Logout                  authclient.Endpoint = "/logout"
)

func byID(id int64) authclient.PathParams {
	return authclient.PathParams{"id": id}
}
