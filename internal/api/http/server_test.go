package http

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
)

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Get("/denied", func(fiber.Ctx) error { return fiber.ErrUnauthorized })
	app.Get("/broken", func(fiber.Ctx) error { return errors.New("db down") })

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/denied", fiber.StatusUnauthorized, "Unauthorized"},
		{"/broken", fiber.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			var body command.Result
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.StatusCode != tc.status || body.Code != command.CodeError || body.Message != tc.message {
				t.Errorf("got %d %+v, want %d %q", resp.StatusCode, body, tc.status, tc.message)
			}
		})
	}
}
