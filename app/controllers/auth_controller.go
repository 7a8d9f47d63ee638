package controllers

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/JonasWeigert/TeamDesk/app/models"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/auth"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/database"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/env"
)

type requestLinkIn struct {
	Email string `json:"email" validate:"required,email"`
}

type redeemIn struct {
	Token string `json:"token" validate:"required"`
}

// HandleRequestLink issues a single-use magic login link for the given email,
// creating the user on first sight.
func HandleRequestLink(c *fiber.Ctx) error {
	var in requestLinkIn
	if handled, err := parseBody(c, &in); handled {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	db := database.GetDB()

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("request-link: user lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
		user = models.User{Email: email}
		if err := db.Create(&user).Error; err != nil {
			log.Printf("request-link: user create failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
	}

	token, err := auth.NewMagicToken()
	if err != nil {
		log.Printf("request-link: token generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	link := models.AuthMagicLink{
		TokenHash: auth.HashMagicToken(token),
		UserID:    user.ID,
		ExpiresAt: auth.MagicLinkExpiry(time.Now().UTC()),
	}
	if err := db.Create(&link).Error; err != nil {
		log.Printf("request-link: link create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	// Outside dev the raw token is only embedded in the redeem link that would
	// be mailed out; it is never echoed directly.
	if !env.IsDev() {
		base := strings.TrimRight(env.GetEnv("BASE_URL", "http://localhost:4000"), "/")
		return c.JSON(fiber.Map{
			"sent": true,
			"link": fmt.Sprintf("%s/auth/redeem?token=%s", base, token),
		})
	}

	return c.JSON(fiber.Map{"sent": true, "token": token})
}

// HandleRedeem exchanges a magic token for an access token. Redemption is a
// single conditional UPDATE so a token can never be spent twice.
func HandleRedeem(c *fiber.Ctx) error {
	var in redeemIn
	if handled, err := parseBody(c, &in); handled {
		return err
	}

	db := database.GetDB()
	now := time.Now().UTC()
	tokenHash := auth.HashMagicToken(strings.TrimSpace(in.Token))

	res := db.Model(&models.AuthMagicLink{}).
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
		Update("used_at", now)
	if res.Error != nil {
		log.Printf("redeem: update failed: %v", res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if res.RowsAffected == 0 {
		// Re-read for a precise rejection reason.
		var link models.AuthMagicLink
		if err := db.Where("token_hash = ?", tokenHash).First(&link).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_token"})
		}
		if link.UsedAt != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token_already_used"})
		}
		if !link.ExpiresAt.After(now) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token_expired"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_token"})
	}

	var link models.AuthMagicLink
	if err := db.Where("token_hash = ?", tokenHash).First(&link).Error; err != nil {
		log.Printf("redeem: link re-read failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	var user models.User
	if err := db.Where("id = ?", link.UserID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_token"})
	}

	accessToken, err := auth.IssueAccessToken(user.ID)
	if err != nil {
		log.Printf("redeem: token signing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{"access_token": accessToken, "token_type": "bearer"})
}
