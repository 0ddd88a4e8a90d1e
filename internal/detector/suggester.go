package detector

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"wattwise/internal/models"
)

type efficiencyRule struct {
	keyword  string
	maxHours float64
	tip      string
	savings  string
}

// Checked in order; the first keyword found in an appliance name wins.
var efficiencyRules = []efficiencyRule{
	{"air conditioner", 8, "Set AC to 24-26°C for optimal efficiency. Each degree lower increases energy by 3-5%.", "high"},
	{"refrigerator", 24, "Keep refrigerator at 3-5°C. Don't overfill and ensure door seals are tight.", "medium"},
	{"water heater", 2, "Use a timer for water heater. Consider solar water heating for significant savings.", "high"},
	{"washing machine", 1, "Wash full loads with cold water. This can reduce energy by 90% per load.", "medium"},
	{"television", 6, "Enable power-saving mode and reduce brightness. Unplug when not in use.", "low"},
	{"computer", 8, "Use sleep mode when idle. A laptop uses 80% less energy than a desktop.", "medium"},
	{"fan", 12, "Ceiling fans are more efficient than pedestal fans. Use with AC to save energy.", "low"},
	{"iron", 1, "Iron in batches and start with delicates. Turn off before finishing the last items.", "medium"},
	{"microwave", 0.5, "Microwave is more efficient than oven for small portions. Keep it clean for efficiency.", "low"},
	{"geyser", 1, "Limit geyser usage to 10-15 minutes. Insulate pipes to retain heat.", "high"},
}

var generalTips = []models.Tip{
	{Category: "lighting", Title: "Switch to LED Bulbs", Message: "LED bulbs use 75% less energy than incandescent and last 25x longer.", Priority: "medium"},
	{Category: "general", Title: "Unplug Standby Devices", Message: "Standby power can account for 5-10% of home energy use. Use power strips.", Priority: "low"},
	{Category: "scheduling", Title: "Optimize Peak Hours", Message: "Avoid running heavy appliances during 6-10 PM when rates may be higher.", Priority: "medium"},
	{Category: "maintenance", Title: "Regular Maintenance", Message: "Clean AC filters monthly. Dirty filters can increase energy use by 15%.", Priority: "medium"},
	{Category: "cooling", Title: "Natural Ventilation", Message: "Open windows during cool mornings/evenings instead of using AC.", Priority: "high"},
}

// TipSuggester turns appliance inventories and recent usage into energy saving tips
type TipSuggester struct {
	highDailyKWh       float64 // Appliance draw per day that earns a warning
	highAvgDailyKWh    float64 // Household average that earns a warning
	minAnomaliesForTip int
	lookbackDays       int
	maxApplianceTips   int
	generalTipCount    int
}

// NewTipSuggester creates a new tip suggester
func NewTipSuggester() *TipSuggester {
	return &TipSuggester{
		highDailyKWh:       5,
		highAvgDailyKWh:    20,
		minAnomaliesForTip: 4,
		lookbackDays:       30,
		maxApplianceTips:   5,
		generalTipCount:    3,
	}
}

// AnalyzeAppliances checks each appliance against the efficiency rules and flags heavy consumers.
func (ts *TipSuggester) AnalyzeAppliances(appliances []models.Appliance) []models.Tip {
	var tips []models.Tip

	for _, a := range appliances {
		name := strings.ToLower(a.Name)
		daily := a.DailyKWh()

		rule, ok := lo.Find(efficiencyRules, func(r efficiencyRule) bool {
			return strings.Contains(name, r.keyword)
		})
		if ok && a.UsageHoursPerDay > rule.maxHours {
			tips = append(tips, models.Tip{
				Category: "appliance",
				Title:    fmt.Sprintf("%s: usage exceeds recommended %g hours/day", a.Name, rule.maxHours),
				Message:  rule.tip,
				Savings:  rule.savings,
				Priority: rule.savings,
			})
		}

		if daily > ts.highDailyKWh {
			tips = append(tips, models.Tip{
				Category: "appliance",
				Title:    fmt.Sprintf("%s: high daily energy consumption", a.Name),
				Message:  fmt.Sprintf("This appliance uses %.1f kWh/day. Consider reducing usage or upgrading to energy-efficient model.", daily),
				Savings:  "high",
				Priority: "high",
			})
		}
	}

	return tips
}

// SuggestTips builds the full recommendation report. seed picks which general
// tips are shown so the selection rotates between calls with different seeds.
func (ts *TipSuggester) SuggestTips(usages []models.DailyUsage, appliances []models.Appliance, seed int) models.TipsReport {
	applianceTips := ts.AnalyzeAppliances(appliances)

	recent := sortedByDate(usages)
	if len(recent) > ts.lookbackDays {
		recent = recent[len(recent)-ts.lookbackDays:]
	}
	avg := averageKWh(recent)
	anomalyCount := lo.CountBy(recent, func(u models.DailyUsage) bool {
		return u.IsAnomaly
	})

	usageTips := []models.Tip{}
	if avg > ts.highAvgDailyKWh {
		usageTips = append(usageTips, models.Tip{
			Category: "usage",
			Title:    "High Energy Consumer",
			Message:  fmt.Sprintf("Your average daily usage (%.1f kWh) is above typical household. Review high-consumption appliances.", avg),
			Priority: "high",
		})
	}
	if anomalyCount >= ts.minAnomaliesForTip {
		usageTips = append(usageTips, models.Tip{
			Category: "usage",
			Title:    "Frequent Anomalies Detected",
			Message:  fmt.Sprintf("%d unusual usage days in the last month. Investigate potential issues or appliance malfunctions.", anomalyCount),
			Priority: "high",
		})
	}

	report := models.TipsReport{
		ApplianceSpecific:    applianceTips,
		UsageBased:           usageTips,
		General:              ts.pickGeneral(seed),
		AvgDailyKWh:          roundTo(avg, 2),
		TotalRecommendations: len(applianceTips) + len(usageTips),
		HighPriorityCount: lo.CountBy(applianceTips, func(t models.Tip) bool {
			return t.Priority == "high"
		}),
	}
	if len(report.ApplianceSpecific) > ts.maxApplianceTips {
		report.ApplianceSpecific = report.ApplianceSpecific[:ts.maxApplianceTips]
	}
	if report.ApplianceSpecific == nil {
		report.ApplianceSpecific = []models.Tip{}
	}
	return report
}

func (ts *TipSuggester) pickGeneral(seed int) []models.Tip {
	n := len(generalTips)
	count := ts.generalTipCount
	if count > n {
		count = n
	}
	if seed < 0 {
		seed = -seed
	}
	picked := make([]models.Tip, 0, count)
	for i := 0; i < count; i++ {
		picked = append(picked, generalTips[(seed+i)%n])
	}
	return picked
}
