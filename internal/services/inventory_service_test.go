package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cardmart/backend/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func validCardInput() CardInput {
	return CardInput{
		Number:      "4111111111111234",
		CVV:         "123",
		Expiry:      "09/28",
		HolderName:  "Jane Roe",
		HolderTaxID: "12345678901",
		Brand:       "visa",
		Bank:        "First National",
		Tier:        "gold",
	}
}

func TestInventoryService_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewInventoryService(db)

	t.Run("creation snapshots the tier price inside the insert", func(t *testing.T) {
		input := validCardInput()

		mock.ExpectQuery("INSERT INTO card_records .* SELECT .* FROM tier_pricing WHERE tier = \\$11 RETURNING price").
			WithArgs(sqlmock.AnyArg(), input.Number, input.CVV, input.Expiry, input.HolderName,
				input.HolderTaxID, input.Brand, input.Bank, "411111", sqlmock.AnyArg(), input.Tier).
			WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(int64(2500)))

		card, err := service.Create(context.Background(), input)

		assert.NoError(t, err)
		assert.Equal(t, int64(2500), card.Price)
		assert.Equal(t, "411111", card.BIN)
		assert.False(t, card.Acquired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert resolves the price the catalog holds at insert time", func(t *testing.T) {
		// A tier re-price committing between validation and insert must be
		// reflected in the new row; the single statement reads tier_pricing
		// at execution, so the returned price is whatever the catalog holds.
		input := validCardInput()

		mock.ExpectQuery("INSERT INTO card_records .* FROM tier_pricing WHERE tier = \\$11 RETURNING price").
			WithArgs(sqlmock.AnyArg(), input.Number, input.CVV, input.Expiry, input.HolderName,
				input.HolderTaxID, input.Brand, input.Bank, "411111", sqlmock.AnyArg(), input.Tier).
			WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(int64(3000)))

		card, err := service.Create(context.Background(), input)

		assert.NoError(t, err)
		assert.Equal(t, int64(3000), card.Price)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short number is rejected before any query", func(t *testing.T) {
		input := validCardInput()
		input.Number = "4111"

		_, err := service.Create(context.Background(), input)

		assert.Equal(t, models.ErrCodeInvalidCardField, models.ErrorCode(err))
	})

	t.Run("malformed expiry is rejected", func(t *testing.T) {
		input := validCardInput()
		input.Expiry = "13/28"

		_, err := service.Create(context.Background(), input)

		assert.Equal(t, models.ErrCodeInvalidCardField, models.ErrorCode(err))
	})

	t.Run("unknown tier inserts nothing", func(t *testing.T) {
		input := validCardInput()
		input.Tier = "mythril"

		mock.ExpectQuery("INSERT INTO card_records .* FROM tier_pricing WHERE tier = \\$11 RETURNING price").
			WillReturnRows(sqlmock.NewRows([]string{"price"}))

		_, err := service.Create(context.Background(), input)

		assert.Equal(t, models.ErrCodeUnknownTier, models.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate card number", func(t *testing.T) {
		input := validCardInput()

		mock.ExpectQuery("INSERT INTO card_records").
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := service.Create(context.Background(), input)

		assert.Equal(t, models.ErrCodeDuplicateCard, models.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInventoryService_ListAvailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewInventoryService(db)

	t.Run("unfiltered listing excludes acquired cards", func(t *testing.T) {
		mock.ExpectQuery("FROM card_records WHERE acquired = FALSE ORDER BY created_at DESC").
			WillReturnRows(cardRows("card-1", "4111111111111234", "gold", 2500))

		cards, err := service.ListAvailable(context.Background(), models.CardFilter{})

		assert.NoError(t, err)
		assert.Len(t, cards, 1)
		assert.Equal(t, "card-1", cards[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filters are combined with AND", func(t *testing.T) {
		mock.ExpectQuery("FROM card_records WHERE acquired = FALSE AND brand = \\$1 AND bank = \\$2 AND tier = \\$3").
			WithArgs("visa", "First National", "gold").
			WillReturnRows(sqlmock.NewRows([]string{"id", "number", "cvv", "expiry", "holder_name", "holder_tax_id",
				"brand", "bank", "tier", "price", "bin", "acquired", "owner_id", "created_at"}))

		cards, err := service.ListAvailable(context.Background(), models.CardFilter{
			Brand: "visa", Bank: "First National", Tier: "gold",
		})

		assert.NoError(t, err)
		assert.Empty(t, cards)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInventoryService_UpdateDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewInventoryService(db)

	t.Run("update refuses acquired cards", func(t *testing.T) {
		mock.ExpectExec("UPDATE card_records").
			WithArgs("card-1", "New Name", "", "").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := service.Update(context.Background(), "card-1", "New Name", "", "")

		assert.Equal(t, models.ErrCodeCardUnavailable, models.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete succeeds for unacquired card", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM card_records WHERE id = \\$1 AND acquired = FALSE").
			WithArgs("card-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.Delete(context.Background(), "card-1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete refuses acquired cards", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM card_records WHERE id = \\$1 AND acquired = FALSE").
			WithArgs("card-sold").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.Delete(context.Background(), "card-sold")

		assert.Equal(t, models.ErrCodeCardUnavailable, models.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInventoryService_ListAvailableCards(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewInventoryService(db)

	t.Run("listing returns cards and count", func(t *testing.T) {
		mock.ExpectQuery("FROM card_records WHERE acquired = FALSE AND tier = \\$1").
			WithArgs("gold").
			WillReturnRows(cardRows("card-1", "4111111111111234", "gold", 2500))

		r := httptest.NewRequest("GET", "/cards?tier=gold", nil)
		w := httptest.NewRecorder()

		service.ListAvailableCards(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":1`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
