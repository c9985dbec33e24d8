package service

import (
	"testing"

	"wallet/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_PresetsSeededOnRegister(t *testing.T) {
	f := newFixture(t)

	tree, err := f.categories.Tree(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, tree, len(testPresets))

	food := tree[0]
	assert.Equal(t, "Food", food.Name)
	assert.Equal(t, "#F56565", food.Color)
	assert.Equal(t, "utensils", food.Icon)
	assert.True(t, food.BudgetTracked)
	assert.Equal(t, []string{"Snacks", "Dining Out"}, food.Tags())
	for _, c := range food.Children {
		assert.Equal(t, food.ID, *c.ParentID)
	}
}

func TestBuildTree(t *testing.T) {
	one, two, missing := uint(1), uint(2), uint(99)
	tree := BuildTree([]models.Category{
		{ID: 1, Name: "Root"},
		{ID: 2, Name: "Child", ParentID: &one},
		{ID: 3, Name: "Grandchild", ParentID: &two},
		{ID: 4, Name: "Orphan", ParentID: &missing},
	})

	require.Len(t, tree, 2)
	assert.Equal(t, "Root", tree[0].Name)
	require.Len(t, tree[0].Children, 1)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "Grandchild", tree[0].Children[0].Children[0].Name)
	assert.Equal(t, "Orphan", tree[1].Name)
}

func TestCategory_CreateRules(t *testing.T) {
	f := newFixture(t)
	food := f.category(t, "Food")

	_, err := f.categories.Create(ctx, f.user.ID, CategoryInput{Name: "Snacks", ParentID: &food.ID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")

	c, err := f.categories.Create(ctx, f.user.ID, CategoryInput{Name: " Groceries ", ParentID: &food.ID})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", c.Name)

	tags, err := f.categories.Tags(ctx, f.user.ID, food.ID)
	require.NoError(t, err)
	assert.Contains(t, tags, "Groceries")

	missing := uint(9999)
	_, err = f.categories.Create(ctx, f.user.ID, CategoryInput{Name: "Lost", ParentID: &missing})
	assert.Error(t, err)

	_, err = f.categories.Create(ctx, f.user.ID, CategoryInput{Name: "  "})
	require.ErrorAs(t, err, &verr)
}

func TestCategory_UpdateRejectsCycle(t *testing.T) {
	f := newFixture(t)
	root, err := f.categories.Create(ctx, f.user.ID, CategoryInput{Name: "Home"})
	require.NoError(t, err)
	child, err := f.categories.Create(ctx, f.user.ID, CategoryInput{Name: "Utilities", ParentID: &root.ID})
	require.NoError(t, err)
	grandchild, err := f.categories.Create(ctx, f.user.ID, CategoryInput{Name: "Power", ParentID: &child.ID})
	require.NoError(t, err)

	_, err = f.categories.Update(ctx, f.user.ID, root.ID, CategoryPatch{ParentID: &grandchild.ID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.categories.Update(ctx, f.user.ID, root.ID, CategoryPatch{ParentID: &root.ID})
	require.ErrorAs(t, err, &verr)

	moved, err := f.categories.Update(ctx, f.user.ID, grandchild.ID, CategoryPatch{MoveToRoot: true})
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
}

func TestCategory_RenameTagSyncsReferences(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "A", "USD", "0")
	food := f.category(t, "Food")

	var snacks models.Category
	require.NoError(t, f.db.Where("parent_id = ? AND name = ?", food.ID, "Snacks").First(&snacks).Error)

	tx, err := f.ledger.Create(ctx, f.user.ID, TransactionInput{
		AccountID: acc.ID, CategoryID: food.ID, Tag: "Snacks", Amount: dec("3"),
		Type: models.TransactionExpense, Date: day("2024-01-01"),
	})
	require.NoError(t, err)
	b, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Tag: "Snacks", Amount: dec("30"),
		StartDate: day("2024-01-01"), EndDate: day("2024-01-31"),
	})
	require.NoError(t, err)

	name := "Treats"
	_, err = f.categories.Update(ctx, f.user.ID, snacks.ID, CategoryPatch{Name: &name})
	require.NoError(t, err)

	got, err := f.ledger.Get(ctx, f.user.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Treats", got.Tag)
	gotBudget, err := f.budgets.Get(ctx, f.user.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Treats", gotBudget.Tag)

	st, err := f.budgets.Status(ctx, f.user.ID, b.ID)
	require.NoError(t, err)
	assertDecimal(t, "3", st.Spent)

	desc := "after rename"
	_, err = f.ledger.Update(ctx, f.user.ID, tx.ID, TransactionPatch{Description: &desc})
	require.NoError(t, err)

	// 只改颜色不影响引用
	color := "#000000"
	_, err = f.categories.Update(ctx, f.user.ID, snacks.ID, CategoryPatch{Color: &color})
	require.NoError(t, err)
	got, err = f.ledger.Get(ctx, f.user.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Treats", got.Tag)
}

func TestCategory_MoveTagClearsReferences(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "A", "USD", "0")
	food := f.category(t, "Food")
	salary := f.category(t, "Salary")

	var snacks models.Category
	require.NoError(t, f.db.Where("parent_id = ? AND name = ?", food.ID, "Snacks").First(&snacks).Error)

	tx, err := f.ledger.Create(ctx, f.user.ID, TransactionInput{
		AccountID: acc.ID, CategoryID: food.ID, Tag: "Snacks", Amount: dec("3"),
		Type: models.TransactionExpense, Date: day("2024-01-01"),
	})
	require.NoError(t, err)
	b, err := f.budgets.Create(ctx, f.user.ID, BudgetInput{
		CategoryID: food.ID, Tag: "Snacks", Amount: dec("30"),
		StartDate: day("2024-01-01"), EndDate: day("2024-01-31"),
	})
	require.NoError(t, err)

	_, err = f.categories.Update(ctx, f.user.ID, snacks.ID, CategoryPatch{ParentID: &salary.ID})
	require.NoError(t, err)

	got, err := f.ledger.Get(ctx, f.user.ID, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tag)
	assert.Equal(t, food.ID, got.CategoryID)
	gotBudget, err := f.budgets.Get(ctx, f.user.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, gotBudget.Tag)

	desc := "after move"
	_, err = f.ledger.Update(ctx, f.user.ID, tx.ID, TransactionPatch{Description: &desc})
	require.NoError(t, err)
}

func TestCategory_Delete(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "A", "USD", "0")
	food := f.category(t, "Food")
	transport := f.category(t, "Transport")

	f.record(t, acc.ID, food.ID, models.TransactionExpense, "1", "2024-01-01")
	err := f.categories.Delete(ctx, f.user.ID, food.ID)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, f.categories.Delete(ctx, f.user.ID, transport.ID))
	_, err = f.categories.Get(ctx, f.user.ID, transport.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var children int64
	require.NoError(t, f.db.Model(&models.Category{}).Where("parent_id = ?", transport.ID).Count(&children).Error)
	assert.Zero(t, children)

	assert.ErrorIs(t, f.categories.Delete(ctx, f.user.ID, transport.ID), ErrNotFound)
}

func TestCategory_ResolveByName(t *testing.T) {
	f := newFixture(t)

	c, err := f.categories.ResolveByName(ctx, f.user.ID, "  fOOd ")
	require.NoError(t, err)
	assert.Equal(t, "Food", c.Name)

	// 标签不是顶级分类
	_, err = f.categories.ResolveByName(ctx, f.user.ID, "Snacks")
	assert.ErrorIs(t, err, ErrNotFound)
}
