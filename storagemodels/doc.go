/*
Package storagemodels defines the data structures shared by the repository,
the stores and the migration job.

Entities:

	UserProfile      id, name, email, status, createdAt, updatedAt
	DashboardStats   totalUsers, activeUsers, totalOrders, revenue, lastUpdated

Requests are validated before any key is built:

	req := storagemodels.CreateUserRequest{Name: "Ada", Email: "ada@example.com"}

Store-level types (Item, ScanParams, Page, IndexQuery, Changes, Adjustment)
describe backend operations without tying callers to one backend.

StoreOptions:

	opts := []StoreOption{
	    WithOpTimeout(2 * time.Second),
	    WithMaxRetries(5),
	    WithBreaker("users-table", 20, 0.5, time.Minute),
	}
*/
package storagemodels
