package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRules() []Rule {
	return []Rule{
		{Code: "PURCHASE", TransactionType: "PURCHASE", Sign: SignAny, DebitAccountCode: "1.1.03.001", CreditAccountCode: "2.1.01.001", IsActive: true},
		{Code: "SALE", TransactionType: "SALE", Sign: SignAny, DebitAccountCode: "5.1.01.001", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "ADJUSTMENT_POSITIVE", TransactionType: "ADJUSTMENT", Sign: SignPositive, DebitAccountCode: "1.1.03.001", CreditAccountCode: "4.2.01.001", IsActive: true},
		{Code: "ADJUSTMENT_NEGATIVE", TransactionType: "ADJUSTMENT", Sign: SignNegative, DebitAccountCode: "5.2.01.001", CreditAccountCode: "1.1.03.001", IsActive: true},
		{Code: "RETIRED", TransactionType: "LOSS", Sign: SignAny, DebitAccountCode: "5.2.01.002", CreditAccountCode: "1.1.03.001", IsActive: false},
	}
}

func TestResolveMatchesTypeAndSign(t *testing.T) {
	r := NewStaticResolver(testRules())

	rule, err := r.Resolve("PURCHASE", SignPositive)
	require.NoError(t, err)
	require.Equal(t, "1.1.03.001", rule.DebitAccountCode)
	require.Equal(t, "2.1.01.001", rule.CreditAccountCode)

	// The sign splits adjustment into two distinct rules.
	rule, err = r.Resolve("ADJUSTMENT", SignPositive)
	require.NoError(t, err)
	require.Equal(t, "ADJUSTMENT_POSITIVE", rule.Code)

	rule, err = r.Resolve("ADJUSTMENT", SignNegative)
	require.NoError(t, err)
	require.Equal(t, "ADJUSTMENT_NEGATIVE", rule.Code)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewStaticResolver(testRules())
	first, err := r.Resolve("SALE", SignPositive)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Resolve("SALE", SignPositive)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestResolveUnknownType(t *testing.T) {
	r := NewStaticResolver(testRules())
	_, err := r.Resolve("GIFT", SignPositive)
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestResolveIgnoresInactiveRules(t *testing.T) {
	r := NewStaticResolver(testRules())
	_, err := r.Resolve("LOSS", SignPositive)
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestResolveAmbiguousRule(t *testing.T) {
	dup := append(testRules(), Rule{
		Code: "PURCHASE_ALT", TransactionType: "PURCHASE", Sign: SignAny,
		DebitAccountCode: "1.1.03.003", CreditAccountCode: "2.1.01.001", IsActive: true,
	})
	r := NewStaticResolver(dup)
	_, err := r.Resolve("PURCHASE", SignPositive)
	require.ErrorIs(t, err, ErrAmbiguousRule)
}

func TestResolveRequiresConcreteSign(t *testing.T) {
	r := NewStaticResolver(testRules())
	_, err := r.Resolve("PURCHASE", SignAny)
	require.ErrorIs(t, err, ErrInvalidSign)
}

type stubLoader struct {
	rules []Rule
}

func (l *stubLoader) ListActive(ctx context.Context) ([]Rule, error) {
	return l.rules, nil
}

func TestReloadSwapsSnapshot(t *testing.T) {
	loader := &stubLoader{rules: testRules()}
	r, err := NewResolver(context.Background(), loader)
	require.NoError(t, err)

	_, err = r.Resolve("PURCHASE", SignPositive)
	require.NoError(t, err)

	loader.rules = []Rule{
		{Code: "LOSS", TransactionType: "LOSS", Sign: SignAny, DebitAccountCode: "5.2.01.002", CreditAccountCode: "1.1.03.001", IsActive: true},
	}
	require.NoError(t, r.Reload(context.Background()))

	_, err = r.Resolve("PURCHASE", SignPositive)
	require.ErrorIs(t, err, ErrRuleNotFound)

	rule, err := r.Resolve("LOSS", SignNegative)
	require.NoError(t, err)
	require.Equal(t, "LOSS", rule.Code)
}
