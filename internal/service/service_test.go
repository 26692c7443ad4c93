package service

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/config"
	"github.com/iliyamo/invoice-billing/internal/ingest"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/pagination"
	"github.com/iliyamo/invoice-billing/internal/queue"
	"github.com/iliyamo/invoice-billing/internal/repository"
	"github.com/iliyamo/invoice-billing/internal/testutil"
	"github.com/iliyamo/invoice-billing/internal/utils"
)

type fixture struct {
	store    *repository.Store
	auth     *AuthService
	users    *UserService
	invoices *InvoiceService
	events   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewStore(testutil.NewDB(t))
	cfg := config.Config{
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       time.Hour,
		BcryptCost:       bcrypt.MinCost,
	}
	events := &recordingPublisher{}
	return &fixture{
		store:    store,
		auth:     NewAuthService(store, cfg),
		users:    NewUserService(store, cfg.BcryptCost),
		invoices: NewInvoiceService(store, events),
		events:   events,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BulkImportedEvent
}

func (p *recordingPublisher) PublishBulkImported(_ context.Context, ev queue.BulkImportedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var adminViewer = model.Viewer{ID: "admin-1", Role: model.RoleAdmin}

func (f *fixture) register(t *testing.T, email, account, password string) model.UserView {
	t.Helper()
	u, err := f.auth.Register(context.Background(), RegisterInput{
		Email: email, Password: password, FirstName: "Jane", LastName: "Doe", AccountNumber: account,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) invoice(t *testing.T, userID, number string) model.InvoiceView {
	t.Helper()
	inv, err := f.invoices.Create(context.Background(), CreateInvoiceInput{
		UserID: userID, InvoiceNumber: number, Amount: 10, Currency: "usd", DueOn: "2030-01-01",
	})
	require.NoError(t, err)
	return inv
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "jane@example.com", "ACC-1", "secret1")

	_, err := f.auth.Register(ctx, RegisterInput{Email: "Jane@Example.com", FirstName: "Jo", LastName: "Do", AccountNumber: "ACC-2"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.auth.Register(ctx, RegisterInput{Email: "other@example.com", FirstName: "Jo", LastName: "Do", AccountNumber: "ACC-1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.auth.Register(ctx, RegisterInput{Email: "not-an-email", FirstName: "Jo", LastName: "Do", AccountNumber: "ACC-3"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRegister_NeverAdmin(t *testing.T) {
	f := newFixture(t)
	u, err := f.auth.Register(context.Background(), RegisterInput{
		Email: "jane@example.com", Password: "secret1", FirstName: "Jane", LastName: "Doe",
		AccountNumber: "ACC-1", Role: model.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, u.Role)
	assert.True(t, u.HasPassword)
}

func TestLogin_FailuresLookAlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "jane@example.com", "ACC-1", "secret1")
	f.register(t, "nopass@example.com", "ACC-2", "")

	_, wrongPassword := f.auth.Login(ctx, "jane@example.com", "wrong")
	_, unknown := f.auth.Login(ctx, "ghost@example.com", "secret1")
	_, noPassword := f.auth.Login(ctx, "nopass@example.com", "")

	for _, err := range []error{wrongPassword, unknown, noPassword} {
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		assert.Equal(t, wrongPassword.Error(), err.Error())
	}

	res, err := f.auth.Login(ctx, "JANE@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "jane@example.com", res.User.Email)
}

func TestRefresh_UsesCurrentRoleAndHonoursLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")
	login, err := f.auth.Login(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)

	role := "admin"
	_, err = f.users.Update(ctx, u.ID, UpdateUserInput{Role: &role})
	require.NoError(t, err)

	res, err := f.auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	claims, err := utils.ParseAccess("access-secret", res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	require.NoError(t, f.auth.Logout(ctx, login.RefreshToken))
	require.NoError(t, f.auth.Logout(ctx, login.RefreshToken))

	_, err = f.auth.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.auth.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCleanupExpiredTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")
	require.NoError(t, f.store.Tokens().StoreRefresh(ctx, u.ID, "old", time.Now().Add(-time.Minute)))
	_, err := f.auth.Login(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)

	n, err := f.auth.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRunTokenSweeper_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.auth.RunTokenSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestBulkCreate_MixedBatch(t *testing.T) {
	f := newFixture(t)
	existing := f.register(t, "bob@example.com", "ACC-OLD", "")
	f.invoice(t, existing.ID, "INV-DUP")

	rows := []ingest.Row{
		{AccountNumber: "ACC-NEW", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
			Amount: 99.5, Currency: "usd", DueOn: "10/24/2030", InvoiceNumber: "INV-1"},
		{AccountNumber: "ACC-OLD", Amount: 10, Currency: "EUR", DueOn: "2030-01-01", InvoiceNumber: "INV-DUP"},
		{AccountNumber: "ACC-GHOST", FirstName: "No", LastName: "Mail", Amount: 5, Currency: "EUR", DueOn: "2030-01-01"},
	}
	res := f.invoices.BulkCreate(context.Background(), adminViewer, rows, "inline")

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.UsersCreated)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.NewUsers, 1)
	assert.Equal(t, "ACC-NEW", res.NewUsers[0].AccountNumber)
	assert.False(t, res.NewUsers[0].HasPassword)
	assert.Equal(t, []string{
		"Invoice number INV-DUP already exists",
		"User with account number ACC-GHOST not found and insufficient data to create user",
	}, res.Errors)

	assert.Eventually(t, func() bool { return f.events.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBulkCreate_LaterRowsSeeEarlierUsers(t *testing.T) {
	f := newFixture(t)
	rows := []ingest.Row{
		{AccountNumber: "A1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Amount: 1, Currency: "USD", DueOn: "2030-01-01"},
		{AccountNumber: "A1", Amount: 2, Currency: "USD", DueOn: "2030-01-02"},
	}
	res := f.invoices.BulkCreate(context.Background(), adminViewer, rows, "inline")
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.UsersCreated)
	assert.Empty(t, res.Errors)
}

func TestBulkCreate_KeepsProvisionedUserWhenInvoiceSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.register(t, "bob@example.com", "ACC-OLD", "")
	f.invoice(t, existing.ID, "INV-DUP")

	rows := []ingest.Row{
		{AccountNumber: "A1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Amount: math.NaN(), Currency: "USD", DueOn: "2030-01-01"},
		{AccountNumber: "A2", FirstName: "Jim", LastName: "Doe", Email: "jim@example.com", Amount: 3, Currency: "USD", DueOn: "2030-01-01", InvoiceNumber: "INV-DUP"},
		{AccountNumber: "A3", FirstName: "No", LastName: "Mail", Amount: math.NaN(), Currency: "USD", DueOn: "not a date"},
	}
	res := f.invoices.BulkCreate(ctx, adminViewer, rows, "inline")

	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.UsersCreated)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.NewUsers, 2)
	assert.Equal(t, "A1", res.NewUsers[0].AccountNumber)
	assert.Equal(t, "A2", res.NewUsers[1].AccountNumber)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "account A1")
	assert.Contains(t, res.Errors[0], "amount must be a positive number")
	assert.Equal(t, "Invoice number INV-DUP already exists", res.Errors[1])
	assert.Equal(t, "User with account number A3 not found and insufficient data to create user", res.Errors[2])

	for _, account := range []string{"A1", "A2"} {
		_, err := f.store.Users().GetByAccountNumber(ctx, account)
		assert.NoError(t, err, account)
	}
	_, err := f.store.Users().GetByAccountNumber(ctx, "A3")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	again := f.invoices.BulkCreate(ctx, adminViewer, rows[:1], "inline")
	assert.Equal(t, 0, again.UsersCreated)
	assert.Empty(t, again.NewUsers)
}

func TestBulkCreate_SubCentAmountSkipped(t *testing.T) {
	f := newFixture(t)
	res := f.invoices.BulkCreate(context.Background(), adminViewer, []ingest.Row{
		{AccountNumber: "A1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Amount: 0.004, Currency: "USD", DueOn: "2030-01-01"},
	}, "inline")
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "amount must be a positive number")
}

func TestImportFile_RemovesUpload(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "upload-1")
	require.NoError(t, os.WriteFile(csvPath, []byte(ingest.SampleCSV), 0o600))
	res, err := f.invoices.ImportFile(context.Background(), adminViewer, csvPath, "sample_invoices.csv", "text/csv")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Created)
	assert.Equal(t, 5, res.UsersCreated)
	assert.NoFileExists(t, csvPath)

	badPath := filepath.Join(dir, "upload-2")
	require.NoError(t, os.WriteFile(badPath, []byte("PK\x03\x04"), 0o600))
	_, err = f.invoices.ImportFile(context.Background(), adminViewer, badPath, "invoices.xlsx", "application/zip")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NoFileExists(t, badPath)

	jsonPath := filepath.Join(dir, "upload-3")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"invoices": [`), 0o600))
	_, err = f.invoices.ImportFile(context.Background(), adminViewer, jsonPath, "x.json", "application/json")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NoFileExists(t, jsonPath)
}

func TestDeleteUser_GuardsInvoicesAndDropsTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")
	login, err := f.auth.Login(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)
	inv := f.invoice(t, u.ID, "INV-1")

	assert.ErrorIs(t, f.users.Delete(ctx, u.ID), apperr.ErrConflict)

	require.NoError(t, f.invoices.Delete(ctx, adminViewer, inv.ID))
	require.NoError(t, f.users.Delete(ctx, u.ID))

	_, err = f.store.Tokens().FindValid(ctx, utils.HashRefreshRaw(login.RefreshToken))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.users.Delete(ctx, u.ID), apperr.ErrNotFound)
}

func TestCustomerCannotChangeInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")
	inv := f.invoice(t, u.ID, "INV-1")
	customer := model.Viewer{ID: u.ID, Role: model.RoleCustomer}

	paid := "PAID"
	_, err := f.invoices.Update(ctx, customer, inv.ID, UpdateInvoiceInput{Status: &paid})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.ErrorIs(t, f.invoices.Delete(ctx, customer, inv.ID), apperr.ErrForbidden)

	got, err := f.invoices.Get(ctx, customer, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestUpdateInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")
	a := f.invoice(t, u.ID, "INV-A")
	f.invoice(t, u.ID, "INV-B")

	bad := "overdue"
	_, err := f.invoices.Update(ctx, adminViewer, a.ID, UpdateInvoiceInput{Status: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	taken := "INV-B"
	_, err = f.invoices.Update(ctx, adminViewer, a.ID, UpdateInvoiceInput{InvoiceNumber: &taken})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	same, paid, due := "INV-A", "paid", "2031-02-03"
	got, err := f.invoices.Update(ctx, adminViewer, a.ID, UpdateInvoiceInput{InvoiceNumber: &same, Status: &paid, DueOn: &due})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, got.Status)
	assert.Equal(t, "2031-02-03", got.DueOn)

	got, err = f.invoices.Update(ctx, adminViewer, a.ID, UpdateInvoiceInput{})
	require.NoError(t, err)
	assert.Equal(t, "2031-02-03", got.DueOn)

	tiny := 0.004
	_, err = f.invoices.Update(ctx, adminViewer, a.ID, UpdateInvoiceInput{Amount: &tiny})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	kept, err := f.invoices.Get(ctx, adminViewer, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, kept.Amount)

	_, err = f.invoices.Update(ctx, adminViewer, "missing", UpdateInvoiceInput{Status: &paid})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")

	got, err := f.invoices.Create(ctx, CreateInvoiceInput{UserID: u.ID, Amount: 12.345, Currency: "eur", DueOn: "2030-05-06"})
	require.NoError(t, err)
	assert.Regexp(t, `^INV-[0-9A-Z]+-[0-9A-Z]{3}$`, got.InvoiceNumber)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, 12.35, got.Amount)
	assert.Equal(t, model.StatusPending, got.Status)
	require.NotNil(t, got.User)
	assert.Equal(t, "ACC-1", got.User.AccountNumber)

	_, err = f.invoices.Create(ctx, CreateInvoiceInput{UserID: "ghost", Amount: 1, Currency: "EUR", DueOn: "2030-05-06"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.invoices.Create(ctx, CreateInvoiceInput{UserID: u.ID, Amount: 0, Currency: "EUR", DueOn: "2030-05-06"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.invoices.Create(ctx, CreateInvoiceInput{UserID: u.ID, Amount: 0.004, Currency: "EUR", DueOn: "2030-05-06"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err = f.invoices.Create(ctx, CreateInvoiceInput{UserID: u.ID, Amount: 0.005, Currency: "EUR", DueOn: "2030-05-06"})
	require.NoError(t, err)
	assert.Equal(t, 0.01, got.Amount)
}

func TestListInvoices_Paging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")
	other := f.register(t, "bob@example.com", "ACC-2", "secret1")
	for _, n := range []string{"INV-1", "INV-2", "INV-3", "INV-4", "INV-5", "INV-6"} {
		f.invoice(t, u.ID, n)
	}
	f.invoice(t, other.ID, "INV-7")

	customer := model.Viewer{ID: u.ID, Role: model.RoleCustomer}
	page1, total1, err := f.invoices.List(ctx, customer, InvoiceFilter{UserID: other.ID}, pagination.Params{Page: 1, Limit: 5})
	require.NoError(t, err)
	page2, total2, err := f.invoices.List(ctx, customer, InvoiceFilter{UserID: other.ID}, pagination.Params{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total1)
	assert.Equal(t, total1, total2)
	assert.Len(t, page1, 5)
	assert.Len(t, page2, 1)
}

func TestStatsAndOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "jane@example.com", "ACC-1", "secret1")
	f.invoice(t, u.ID, "INV-1")
	b := f.invoice(t, u.ID, "INV-2")
	paid := "PAID"
	_, err := f.invoices.Update(ctx, adminViewer, b.ID, UpdateInvoiceInput{Status: &paid})
	require.NoError(t, err)

	stats, err := f.invoices.Stats(ctx, model.Viewer{ID: u.ID, Role: model.RoleCustomer})
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalInvoices)
	assert.EqualValues(t, 1, stats.PendingInvoices)
	assert.EqualValues(t, 1, stats.PaidInvoices)
	assert.Equal(t, 20.0, stats.TotalAmount)
	assert.Len(t, stats.RecentInvoices, 2)

	f.invoices.now = func() time.Time { return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC) }
	overdue, err := f.invoices.Overdue(ctx, adminViewer)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "INV-1", overdue[0].InvoiceNumber)
}

func TestUserService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, err := f.users.Create(ctx, RegisterInput{
		Email: "root@example.com", Password: "secret1", FirstName: "Ro", LastName: "Ot",
		AccountNumber: "ADM-1", Role: model.RoleAdmin,
	})
	require.NoError(t, err)
	jane := f.register(t, "jane@example.com", "ACC-1", "")
	f.register(t, "bob@example.com", "ACC-2", "secret1")
	f.invoice(t, jane.ID, "INV-1")

	customers, total, err := f.users.List(ctx, UserFilter{Role: ptr(model.RoleCustomer)}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, c := range customers {
		require.NotNil(t, c.InvoiceCount)
		if c.ID == jane.ID {
			assert.EqualValues(t, 1, *c.InvoiceCount)
		}
	}
	all, total, err := f.users.List(ctx, UserFilter{}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	taken := "bob@example.com"
	_, err = f.users.Update(ctx, jane.ID, UpdateUserInput{Email: &taken})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, f.users.SetPassword(ctx, jane.ID, "newpass1"))
	_, err = f.auth.Login(ctx, "jane@example.com", "newpass1")
	require.NoError(t, err)
	assert.ErrorIs(t, f.users.SetPassword(ctx, jane.ID, "123"), apperr.ErrValidation)

	stats, err := f.users.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalUsers)
	assert.EqualValues(t, 1, stats.AdminUsers)
	assert.EqualValues(t, 0, stats.UsersWithoutPassword)

	profile, err := f.auth.Profile(ctx, model.Viewer{ID: admin.ID, Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", profile.Email)
}

func ptr[T any](v T) *T { return &v }
