// Package services holds presentation-layer helpers over batch results.
package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/orchestrator"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

// Report summarizes one acquisition run for the terminal.
type Report struct {
	TotalRecords   int
	UniqueRecords  int
	RecordsByCity  map[string]int
	AveragePrice   float64
	MinPrice       float64
	MaxPrice       float64
	Cheapest       *models.ListingRecord
	TopRated       []models.ListingRecord
	SourceStats    map[models.Source]orchestrator.SourceStats
	SourceFailures []orchestrator.SourceFailure
}

// ReportService builds and prints acquisition reports.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate builds a report over a batch outcome and its deduplicated
// records.
func (s *ReportService) Generate(batch *orchestrator.BatchResult, deduped []models.ListingRecord) *Report {
	report := &Report{
		TotalRecords:   len(batch.Records),
		UniqueRecords:  len(deduped),
		RecordsByCity:  make(map[string]int),
		SourceStats:    batch.PerSource,
		SourceFailures: batch.Failures,
	}

	if len(deduped) == 0 {
		return report
	}

	var priced []models.ListingRecord
	var rated []models.ListingRecord
	for _, l := range deduped {
		if l.Price > 0 {
			priced = append(priced, l)
		}
		if l.Rating != nil {
			rated = append(rated, l)
		}
		if l.DestinationCity != "" {
			report.RecordsByCity[l.DestinationCity]++
		}
	}

	if len(priced) > 0 {
		report.MinPrice = priced[0].Price
		report.MaxPrice = priced[0].Price
		cheapest := priced[0]
		var total float64
		for _, l := range priced {
			total += l.Price
			if l.Price < report.MinPrice {
				report.MinPrice = l.Price
				cheapest = l
			}
			if l.Price > report.MaxPrice {
				report.MaxPrice = l.Price
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
		report.Cheapest = &cheapest
	}

	sort.Slice(rated, func(i, j int) bool {
		return rated[i].RatingOrZero() > rated[j].RatingOrZero()
	})
	if len(rated) > 5 {
		rated = rated[:5]
	}
	report.TopRated = rated

	return report
}

// Print renders the report to the terminal.
func (s *ReportService) Print(r *Report) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🧳 TRAVEL DEAL ACQUISITION REPORT\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Records collected      : \033[1m%d\033[0m\n", r.TotalRecords)
	fmt.Printf("  Unique properties      : \033[1m%d\033[0m\n", r.UniqueRecords)
	fmt.Println()

	fmt.Printf("\033[1;33m  Sources\033[0m\n")
	fmt.Printf("  %s\n", thin)
	var sources []models.Source
	for src := range r.SourceStats {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	for _, src := range sources {
		st := r.SourceStats[src]
		if st.Failed {
			fmt.Printf("  %-10s \033[1;31mfailed\033[0m after %s\n", src, st.Elapsed.Round(1e6))
			continue
		}
		fmt.Printf("  %-10s \033[1;32m%d records\033[0m in %s\n", src, st.Records, st.Elapsed.Round(1e6))
	}
	for _, f := range r.SourceFailures {
		recov := "permanent"
		if f.Recoverable {
			recov = "retryable"
		}
		fmt.Printf("    └─ [%s] %s (%s): %s\n", f.Source, f.Kind, recov, truncate(f.Message, 60))
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Statistics (per night)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Printf("  Average price : \033[1;32m€%.2f\033[0m\n", r.AveragePrice)
		fmt.Printf("  Minimum price : \033[1;32m€%.2f\033[0m\n", r.MinPrice)
		fmt.Printf("  Maximum price : \033[1;32m€%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	if r.Cheapest != nil {
		fmt.Printf("\033[1;33m  Best Deal\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.Cheapest.Name, 50))
		fmt.Printf("  City     : %s\n", r.Cheapest.DestinationCity)
		fmt.Printf("  Price    : \033[1;32m€%.2f/night\033[0m\n", r.Cheapest.Price)
		if r.Cheapest.DuplicateCount > 1 {
			fmt.Printf("  Seen on  : %d listings across sources\n", r.Cheapest.DuplicateCount)
		}
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Top Rated Properties\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.TopRated) == 0 {
		fmt.Printf("  No rated listings found\n")
	} else {
		for i, l := range r.TopRated {
			fmt.Printf("  \033[1m%d.\033[0m %-40s \033[1;32m%.2f ★\033[0m\n",
				i+1, truncate(l.Name, 38), l.RatingOrZero())
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Listings by City\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.RecordsByCity) == 0 {
		fmt.Printf("  No city data\n")
	} else {
		type cityCount struct {
			city  string
			count int
		}
		var cities []cityCount
		for city, cnt := range r.RecordsByCity {
			cities = append(cities, cityCount{city, cnt})
		}
		sort.Slice(cities, func(i, j int) bool {
			return cities[i].count > cities[j].count
		})
		for _, cc := range cities {
			bar := strings.Repeat("█", cc.count)
			fmt.Printf("  %-30s %s (%d)\n", truncate(cc.city, 28), bar, cc.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
