package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var luckWords = []string{
	"Lucky", "Golden", "Wild", "Silver", "Jolly",
	"Cosmic", "Hidden", "Shiny", "Secret", "Daring",
	"Velvet", "Ruby", "Crystal", "Midnight", "Sunny",
}

var charms = []string{
	"Clover", "Horseshoe", "Ticket", "Jackpot", "Dice",
	"Coin", "Star", "Magpie", "Comet", "Token",
	"Chest", "Wish", "Gem", "Spinner", "Lantern",
}

func pick(words []string) (string, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("failed to pick word: %w", err)
	}
	return words[idx.Int64()], nil
}

// GenerateNickname returns a random "Word_Charm_NNNN" nickname for new players
func GenerateNickname() (string, error) {
	word, err := pick(luckWords)
	if err != nil {
		return "", err
	}
	charm, err := pick(charms)
	if err != nil {
		return "", err
	}
	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s_%04d", word, charm, suffix.Int64()), nil
}
