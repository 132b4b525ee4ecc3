package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/Nithisha-bichala/bank-simulation/internal/domain"
	"github.com/Nithisha-bichala/bank-simulation/internal/store"
	"github.com/Nithisha-bichala/bank-simulation/pkg/rabbitmq"
)

// ledgerRepoStub is an in-memory Repository honoring the same contract as the
// Postgres implementation: a failed operation leaves no partial effect.
type ledgerRepoStub struct {
	accounts     map[string]*domain.Account
	owners       map[int64]*domain.Customer // keyed by account id
	transactions []domain.Transaction
	nextID       int64
	utrSeq       int64
}

func newLedgerRepoStub() *ledgerRepoStub {
	return &ledgerRepoStub{
		accounts: make(map[string]*domain.Account),
		owners:   make(map[int64]*domain.Customer),
	}
}

func (s *ledgerRepoStub) addAccount(number string, balance int64, owner *domain.Customer) {
	s.nextID++
	s.accounts[number] = &domain.Account{
		ID:            s.nextID,
		CustomerID:    owner.ID,
		Balance:       balance,
		Status:        "active",
		AccountNumber: number,
	}
	s.owners[s.nextID] = owner
}

func (s *ledgerRepoStub) nextUTR() string {
	s.utrSeq++
	return fmt.Sprintf("UTR%012d", s.utrSeq)
}

func (s *ledgerRepoStub) appendRecord(account *domain.Account, amount int64, kind, description, modifiedBy, counterparty, mode string) *domain.Transaction {
	s.nextID++
	record := domain.Transaction{
		ID:            s.nextID,
		UTRNumber:     s.nextUTR(),
		Amount:        amount,
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		BalanceAfter:  account.Balance,
		Description:   description,
		ModifiedBy:    modifiedBy,
		Counterparty:  counterparty,
		Kind:          kind,
		Mode:          mode,
	}
	s.transactions = append(s.transactions, record)
	return &record
}

func (s *ledgerRepoStub) verifyMPIN(accountNumber, mpin string) error {
	if mpin == "" {
		return store.ErrMPINRequired
	}
	account, ok := s.accounts[accountNumber]
	if !ok {
		return store.ErrCustomerNotFound
	}
	owner, ok := s.owners[account.ID]
	if !ok || owner.MPIN == "" {
		return store.ErrCustomerNotFound
	}
	if owner.MPIN != mpin {
		return store.ErrInvalidMPIN
	}
	return nil
}

func (s *ledgerRepoStub) PerformDeposit(ctx context.Context, p store.DepositParams) (*domain.Transaction, error) {
	account, ok := s.accounts[p.AccountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	account.Balance += p.Amount
	return s.appendRecord(account, p.Amount, domain.TransactionKindDeposit, p.Description, p.ModifiedBy, p.Counterparty, p.Mode), nil
}

func (s *ledgerRepoStub) PerformWithdrawal(ctx context.Context, p store.WithdrawalParams) (*domain.Transaction, error) {
	if err := s.verifyMPIN(p.AccountNumber, p.MPIN); err != nil {
		return nil, err
	}
	account, ok := s.accounts[p.AccountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if account.Balance < p.Amount {
		return nil, store.ErrInsufficientFunds
	}
	account.Balance -= p.Amount
	return s.appendRecord(account, p.Amount, domain.TransactionKindWithdraw, p.Description, p.ModifiedBy, p.Counterparty, p.Mode), nil
}

func (s *ledgerRepoStub) PerformTransfer(ctx context.Context, p store.TransferParams) (*domain.TransferReceipt, error) {
	if err := s.verifyMPIN(p.SenderAccountNumber, p.MPIN); err != nil {
		return nil, err
	}
	sender, ok := s.accounts[p.SenderAccountNumber]
	if !ok {
		return nil, fmt.Errorf("sender account %s: %w", p.SenderAccountNumber, store.ErrAccountNotFound)
	}
	receiver, ok := s.accounts[p.ReceiverAccountNumber]
	if !ok {
		return nil, fmt.Errorf("receiver account %s: %w", p.ReceiverAccountNumber, store.ErrAccountNotFound)
	}
	if sender.Balance < p.Amount {
		return nil, store.ErrInsufficientFunds
	}

	sender.Balance -= p.Amount
	receiver.Balance += p.Amount

	debitDesc := "Transfer to " + p.ReceiverAccountNumber
	creditDesc := "Received from " + p.SenderAccountNumber
	if p.Description != "" {
		debitDesc += ": " + p.Description
		creditDesc += ": " + p.Description
	}

	debit := s.appendRecord(sender, p.Amount, domain.TransactionKindWithdraw, debitDesc, "System", p.ReceiverAccountNumber, p.Mode)
	credit := s.appendRecord(receiver, p.Amount, domain.TransactionKindDeposit, creditDesc, "System", p.SenderAccountNumber, p.Mode)
	return &domain.TransferReceipt{Debit: debit, Credit: credit}, nil
}

func (s *ledgerRepoStub) ListTransactionsByAccountNumber(ctx context.Context, accountNumber string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, record := range s.transactions {
		if record.AccountNumber == accountNumber {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *ledgerRepoStub) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	account, ok := s.accounts[accountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *ledgerRepoStub) FindCustomerByAccountID(ctx context.Context, accountID int64) (*domain.Customer, error) {
	owner, ok := s.owners[accountID]
	if !ok {
		return nil, store.ErrCustomerNotFound
	}
	return owner, nil
}

func (s *ledgerRepoStub) CreateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	s.nextID++
	customer.ID = s.nextID
	return customer, nil
}

func (s *ledgerRepoStub) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	s.nextID++
	account.ID = s.nextID
	s.accounts[account.AccountNumber] = account
	s.owners[account.ID] = &domain.Customer{ID: account.CustomerID}
	return account, nil
}

// notifierStub captures published notification events; when err is set every
// publish fails, which must never surface to the ledger engine's caller.
type notifierStub struct {
	events []rabbitmq.TransactionNotification
	err    error
}

func (n *notifierStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return n.err
}

func (n *notifierStub) PublishTransactionNotification(ctx context.Context, exchange string, event rabbitmq.TransactionNotification) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *notifierStub) Close() {}

func newTestService() (*Service, *ledgerRepoStub, *notifierStub) {
	repo := newLedgerRepoStub()
	notifier := &notifierStub{}
	return NewService(repo, notifier, "bank.events"), repo, notifier
}

func seedScenarioAccounts(repo *ledgerRepoStub) {
	repo.addAccount("ACC00100", 500000, &domain.Customer{ID: 1, CustomerName: "Asha Rao", Email: "asha@example.com", MPIN: "1234"})
	repo.addAccount("ACC00200", 500000, &domain.Customer{ID: 2, CustomerName: "Ravi Menon", Email: "ravi@example.com", MPIN: "9876"})
}

func TestDeposit_RejectsNonPositiveAmount(t *testing.T) {
	service, repo, notifier := newTestService()
	seedScenarioAccounts(repo)

	for _, amount := range []int64{0, -500} {
		_, err := service.Deposit(context.Background(), domain.DepositRequest{AccountNumber: "ACC00100", Amount: amount})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("expected no ledger records, got %d", len(repo.transactions))
	}
	if len(notifier.events) != 0 {
		t.Fatal("did not expect notifications for rejected deposits")
	}
}

func TestDeposit_CreditsAccountAndNotifies(t *testing.T) {
	service, repo, notifier := newTestService()
	seedScenarioAccounts(repo)

	record, err := service.Deposit(context.Background(), domain.DepositRequest{
		AccountNumber: "ACC00100",
		Amount:        25000,
		Description:   "salary",
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if record.Kind != domain.TransactionKindDeposit {
		t.Fatalf("expected deposit kind, got %q", record.Kind)
	}
	if record.BalanceAfter != 525000 {
		t.Fatalf("expected balance_after 525000, got %d", record.BalanceAfter)
	}
	if record.ModifiedBy != "System" || record.Counterparty != "Bank" {
		t.Fatalf("expected default actor labels, got %q/%q", record.ModifiedBy, record.Counterparty)
	}
	if record.UTRNumber == "" {
		t.Fatal("expected a reference token on the returned record")
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.events))
	}
	event := notifier.events[0]
	if event.Kind != rabbitmq.NotificationKindCredit {
		t.Fatalf("expected credit notification, got %q", event.Kind)
	}
	if event.Email != "asha@example.com" || event.BalanceAfter != 525000 || event.UTRNumber != record.UTRNumber {
		t.Fatalf("notification payload mismatch: %+v", event)
	}
}

func TestDeposit_UnknownAccount(t *testing.T) {
	service, repo, notifier := newTestService()
	seedScenarioAccounts(repo)

	_, err := service.Deposit(context.Background(), domain.DepositRequest{AccountNumber: "ACC99999", Amount: 1000})
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if len(repo.transactions) != 0 || len(notifier.events) != 0 {
		t.Fatal("expected no mutation and no notification for unknown account")
	}
}

func TestWithdraw_Succeeds(t *testing.T) {
	service, repo, _ := newTestService()
	seedScenarioAccounts(repo)

	record, err := service.Withdraw(context.Background(), domain.WithdrawRequest{
		AccountNumber: "ACC00100",
		Amount:        50000,
		MPIN:          "1234",
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if record.Kind != domain.TransactionKindWithdraw {
		t.Fatalf("expected withdraw kind, got %q", record.Kind)
	}
	if record.Amount != 50000 || record.BalanceAfter != 450000 {
		t.Fatalf("expected amount 50000 and balance_after 450000, got %d/%d", record.Amount, record.BalanceAfter)
	}
	if repo.accounts["ACC00100"].Balance != 450000 {
		t.Fatalf("expected account balance 450000, got %d", repo.accounts["ACC00100"].Balance)
	}
}

func TestWithdraw_InsufficientFundsLeavesNoPartialEffect(t *testing.T) {
	service, repo, notifier := newTestService()
	seedScenarioAccounts(repo)

	_, err := service.Withdraw(context.Background(), domain.WithdrawRequest{
		AccountNumber: "ACC00100",
		Amount:        600000,
		MPIN:          "1234",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if repo.accounts["ACC00100"].Balance != 500000 {
		t.Fatalf("expected balance unchanged at 500000, got %d", repo.accounts["ACC00100"].Balance)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("expected no ledger records, got %d", len(repo.transactions))
	}
	if len(notifier.events) != 0 {
		t.Fatal("did not expect a notification for a failed withdrawal")
	}
}

func TestWithdraw_CredentialFailures(t *testing.T) {
	service, repo, _ := newTestService()
	seedScenarioAccounts(repo)

	tests := []struct {
		name    string
		account string
		mpin    string
		want    error
	}{
		{name: "missing mpin", account: "ACC00100", mpin: "", want: store.ErrMPINRequired},
		{name: "wrong mpin", account: "ACC00100", mpin: "0000", want: store.ErrInvalidMPIN},
		{name: "no resolvable owner", account: "ACC99999", mpin: "1234", want: store.ErrCustomerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Withdraw(context.Background(), domain.WithdrawRequest{
				AccountNumber: tt.account,
				Amount:        1000,
				MPIN:          tt.mpin,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(repo.transactions) != 0 {
		t.Fatal("credential failures must not create ledger records")
	}
}

func TestWithdraw_NotificationFailureNeverSurfaces(t *testing.T) {
	service, repo, notifier := newTestService()
	seedScenarioAccounts(repo)
	notifier.err = errors.New("broker unreachable")

	record, err := service.Withdraw(context.Background(), domain.WithdrawRequest{
		AccountNumber: "ACC00100",
		Amount:        50000,
		MPIN:          "1234",
	})
	if err != nil {
		t.Fatalf("withdraw must succeed despite notification failure, got %v", err)
	}
	if record.BalanceAfter != 450000 {
		t.Fatalf("expected committed balance_after 450000, got %d", record.BalanceAfter)
	}
	if repo.accounts["ACC00100"].Balance != 450000 {
		t.Fatal("committed withdrawal must not be rolled back by a notification failure")
	}
}

func TestTransfer_ConservesFunds(t *testing.T) {
	service, repo, notifier := newTestService()
	seedScenarioAccounts(repo)

	receipt, err := service.Transfer(context.Background(), domain.TransferRequest{
		SenderAccountNumber:   "ACC00100",
		ReceiverAccountNumber: "ACC00200",
		Amount:                50000,
		Mode:                  "UPI",
		Description:           "rent",
		MPIN:                  "1234",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	sender := repo.accounts["ACC00100"]
	receiver := repo.accounts["ACC00200"]
	if sender.Balance != 450000 || receiver.Balance != 550000 {
		t.Fatalf("expected balances 450000/550000, got %d/%d", sender.Balance, receiver.Balance)
	}
	if sender.Balance+receiver.Balance != 1000000 {
		t.Fatalf("transfer must conserve funds, total is %d", sender.Balance+receiver.Balance)
	}

	if len(repo.transactions) != 2 {
		t.Fatalf("expected exactly two ledger records, got %d", len(repo.transactions))
	}
	if receipt.Debit.UTRNumber == receipt.Credit.UTRNumber {
		t.Fatal("transfer legs must carry distinct reference tokens")
	}
	if receipt.Debit.Kind != domain.TransactionKindWithdraw || receipt.Credit.Kind != domain.TransactionKindDeposit {
		t.Fatalf("unexpected leg kinds %q/%q", receipt.Debit.Kind, receipt.Credit.Kind)
	}
	if receipt.Debit.Description != "Transfer to ACC00200: rent" {
		t.Fatalf("unexpected debit description %q", receipt.Debit.Description)
	}
	if receipt.Credit.Description != "Received from ACC00100: rent" {
		t.Fatalf("unexpected credit description %q", receipt.Credit.Description)
	}
	if receipt.Debit.BalanceAfter != 450000 || receipt.Credit.BalanceAfter != 550000 {
		t.Fatalf("leg balance snapshots mismatch: %d/%d", receipt.Debit.BalanceAfter, receipt.Credit.BalanceAfter)
	}

	if len(notifier.events) != 2 {
		t.Fatalf("expected one debit and one credit notification, got %d", len(notifier.events))
	}
	if notifier.events[0].Kind != rabbitmq.NotificationKindDebit || notifier.events[0].Email != "asha@example.com" {
		t.Fatalf("unexpected debit notification %+v", notifier.events[0])
	}
	if notifier.events[1].Kind != rabbitmq.NotificationKindCredit || notifier.events[1].Email != "ravi@example.com" {
		t.Fatalf("unexpected credit notification %+v", notifier.events[1])
	}
}

func TestTransfer_InsufficientFundsLeavesNoPartialEffect(t *testing.T) {
	service, repo, notifier := newTestService()
	seedScenarioAccounts(repo)

	_, err := service.Transfer(context.Background(), domain.TransferRequest{
		SenderAccountNumber:   "ACC00100",
		ReceiverAccountNumber: "ACC00200",
		Amount:                600000,
		MPIN:                  "1234",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if repo.accounts["ACC00100"].Balance != 500000 || repo.accounts["ACC00200"].Balance != 500000 {
		t.Fatal("failed transfer must not change either balance")
	}
	if len(repo.transactions) != 0 || len(notifier.events) != 0 {
		t.Fatal("failed transfer must create no records and no notifications")
	}
}

func TestTransfer_UnknownReceiverNamesSide(t *testing.T) {
	service, repo, _ := newTestService()
	seedScenarioAccounts(repo)

	_, err := service.Transfer(context.Background(), domain.TransferRequest{
		SenderAccountNumber:   "ACC00100",
		ReceiverAccountNumber: "ACC99999",
		Amount:                1000,
		MPIN:                  "1234",
	})
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err == nil || !containsSubstring(err.Error(), "receiver account ACC99999") {
		t.Fatalf("expected error to name the failing side, got %v", err)
	}
	if repo.accounts["ACC00100"].Balance != 500000 {
		t.Fatal("sender balance must be untouched when the receiver is unknown")
	}
}

func TestTransfer_SameAccountRejected(t *testing.T) {
	service, repo, _ := newTestService()
	seedScenarioAccounts(repo)

	_, err := service.Transfer(context.Background(), domain.TransferRequest{
		SenderAccountNumber:   "ACC00100",
		ReceiverAccountNumber: "ACC00100",
		Amount:                1000,
		MPIN:                  "1234",
	})
	if !errors.Is(err, ErrSameAccountTransfer) {
		t.Fatalf("expected ErrSameAccountTransfer, got %v", err)
	}
}

func TestListTransactions_IdempotentRead(t *testing.T) {
	service, repo, _ := newTestService()
	seedScenarioAccounts(repo)

	if _, err := service.Deposit(context.Background(), domain.DepositRequest{AccountNumber: "ACC00100", Amount: 1000}); err != nil {
		t.Fatalf("seed deposit failed: %v", err)
	}
	if _, err := service.Withdraw(context.Background(), domain.WithdrawRequest{AccountNumber: "ACC00100", Amount: 500, MPIN: "1234"}); err != nil {
		t.Fatalf("seed withdrawal failed: %v", err)
	}

	first, err := service.ListTransactions(context.Background(), "ACC00100")
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	second, err := service.ListTransactions(context.Background(), "ACC00100")
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical results for repeated reads with no intervening writes")
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 records, got %d", len(first))
	}
}

func TestReferenceTokens_PairwiseDistinctAcrossOperations(t *testing.T) {
	service, repo, _ := newTestService()
	seedScenarioAccounts(repo)

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		record, err := service.Deposit(context.Background(), domain.DepositRequest{AccountNumber: "ACC00100", Amount: 100})
		if err != nil {
			t.Fatalf("deposit %d failed: %v", i, err)
		}
		if _, dup := seen[record.UTRNumber]; dup {
			t.Fatalf("duplicate reference token %q", record.UTRNumber)
		}
		seen[record.UTRNumber] = struct{}{}
	}
	_ = repo
}

func TestOpenCustomer_RejectsMalformedMPIN(t *testing.T) {
	service, _, _ := newTestService()

	for _, mpin := range []string{"12", "12345", "12a4"} {
		_, err := service.OpenCustomer(context.Background(), &domain.Customer{
			CustomerName: "Test",
			Username:     "test",
			Email:        "test@example.com",
			MPIN:         mpin,
		})
		if !errors.Is(err, ErrInvalidMPINFormat) {
			t.Fatalf("mpin %q: expected ErrInvalidMPINFormat, got %v", mpin, err)
		}
	}
}

func TestOpenAccount_RejectsMalformedAccountNumber(t *testing.T) {
	service, _, _ := newTestService()

	for _, number := range []string{"acc00001", "ACCOUNT1", "AC000001", "ACC0001"} {
		_, err := service.OpenAccount(context.Background(), &domain.Account{AccountNumber: number, CustomerID: 1})
		if !errors.Is(err, ErrInvalidAccountNumber) {
			t.Fatalf("number %q: expected ErrInvalidAccountNumber, got %v", number, err)
		}
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
