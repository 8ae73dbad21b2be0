package api

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"realtors/models"
)

// parseCriteria reads search filters from the query string. Numbers that do
// not parse are ignored rather than rejected.
func parseCriteria(c *gin.Context) models.Criteria {
	criteria := models.Criteria{
		ListingType:  models.ListingType(c.Query("listingType")),
		Location:     c.Query("location"),
		PropertyType: models.PropertyType(c.Query("propertyType")),
		Zone:         c.Query("zone"),
		MinPrice:     queryFloat(c, "minPrice"),
		MaxPrice:     queryFloat(c, "maxPrice"),
		MinArea:      queryFloat(c, "minArea"),
		MaxArea:      queryFloat(c, "maxArea"),
		Beds:         queryInt(c, "beds"),
		Baths:        queryInt(c, "baths"),
	}

	for _, v := range c.QueryArray("zones") {
		for _, z := range strings.Split(v, ",") {
			if z = strings.TrimSpace(z); z != "" {
				criteria.Zones = append(criteria.Zones, z)
			}
		}
	}
	return criteria
}

func queryFloat(c *gin.Context, key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.Query(key)), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
