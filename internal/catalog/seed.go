package catalog

import "shelfreads/internal/models"

// DefaultBooks returns the fixed catalog the service ships with. IDs are
// stable string keys; List preserves this order.
func DefaultBooks() []models.Book {
	return []models.Book{
		{ID: "1", Author: "Chinua Achebe", Title: "Things Fall Apart"},
		{ID: "2", Author: "Hans Christian Andersen", Title: "Fairy tales"},
		{ID: "3", Author: "Dante Alighieri", Title: "The Divine Comedy"},
		{ID: "4", Author: "Unknown", Title: "The Epic Of Gilgamesh"},
		{ID: "5", Author: "Unknown", Title: "The Book Of Job"},
		{ID: "6", Author: "Unknown", Title: "One Thousand and One Nights"},
		{ID: "7", Author: "Unknown", Title: "Njál's Saga"},
		{ID: "8", Author: "Jane Austen", Title: "Pride and Prejudice"},
		{ID: "9", Author: "Honoré de Balzac", Title: "Le Père Goriot"},
		{ID: "10", Author: "Samuel Beckett", Title: "Molloy, Malone Dies, The Unnamable, the trilogy"},
	}
}
