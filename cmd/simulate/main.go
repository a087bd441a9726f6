// simulate 生成一家虚拟公司的员工与打卡数据，在内存仓储上运行异常扫描并输出汇总。
//
// 用法:
//
//	go run ./cmd/simulate -employees 40 -days 28 -outliers 6 -seed 123
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"payguard/backend/config"
	"payguard/backend/internal/model"
	"payguard/backend/internal/service"
	"payguard/backend/pkg/kafka"
	"payguard/backend/pkg/logger"
	"payguard/backend/pkg/memstore"
	"payguard/backend/pkg/metrics"
)

func main() {
	_ = godotenv.Load()

	employees := flag.Int("employees", 40, "员工数量")
	days := flag.Int("days", 28, "生成最近 N 天的打卡记录")
	outliers := flag.Int("outliers", 6, "注入的异常记录数量")
	seed := flag.Int64("seed", 123, "随机种子（数据与孤立森林共用）")
	scans := flag.Int("scans", 1, "连续扫描次数，用于观察信誉分变化")
	logLevel := flag.String("log-level", "info", "日志级别")
	flag.Parse()

	log, err := logger.NewLogger(&config.LogConfig{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := &config.Config{
		Detector: config.DetectorConfig{NumTrees: 100, MaxSamples: 256, Threshold: 0.55, Seed: *seed},
		Scan:     config.ScanConfig{LockTTL: 2 * time.Minute},
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	store := memstore.New()
	companyID := uuid.New().String()

	gen := newGenerator(uint64(*seed), store, companyID, today)
	gen.seedPayCycles()
	gen.seedWorkforce(*employees, *days)
	injected := gen.injectOutliers(*outliers)

	log.Info("模拟数据已生成",
		zap.String("company_id", companyID),
		zap.Int("employees", *employees),
		zap.Int("entries", gen.entries),
		zap.Int("outliers", injected),
	)

	svc := service.NewService(cfg, store.Repository(), kafka.NopPublisher{}, nil, metrics.New(), log)

	ctx := context.Background()
	for i := 0; i < *scans; i++ {
		res, err := svc.Anomaly.ScanCompany(ctx, companyID, today)
		if err != nil {
			log.Fatal("扫描失败", zap.Int("round", i+1), zap.Error(err))
		}
		log.Info("扫描完成",
			zap.Int("round", i+1),
			zap.Int("scanned", res.ScannedEntries),
			zap.Int("anomalies", res.TotalAnomalies),
			zap.Int("remediations", res.RemediationCount),
			zap.Int("reviews", res.ReviewCount),
		)
	}

	summary, err := svc.Anomaly.GetSummary(ctx, companyID)
	if err != nil {
		log.Fatal("获取汇总失败", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatal("输出汇总失败", zap.Error(err))
	}
}

// ════════════════════════════════════════════════════════════
// 数据生成
// ════════════════════════════════════════════════════════════

type generator struct {
	faker     *gofakeit.Faker
	store     *memstore.Store
	companyID string
	today     time.Time

	employeeIDs []string
	entries     int
}

func newGenerator(seed uint64, store *memstore.Store, companyID string, today time.Time) *generator {
	return &generator{
		faker:     gofakeit.New(seed),
		store:     store,
		companyID: companyID,
		today:     today,
	}
}

// seedPayCycles 双周发薪：过去两期已执行，下一期待执行
func (g *generator) seedPayCycles() {
	lastEnd := g.today.AddDate(0, 0, -g.faker.IntRange(1, 10))
	for i := 2; i >= 1; i-- {
		end := lastEnd.AddDate(0, 0, -14*(i-1))
		g.store.AddPayCycle(model.PayCycle{
			PayCycleID:  uuid.New().String(),
			CompanyID:   g.companyID,
			PeriodStart: end.AddDate(0, 0, -13),
			PeriodEnd:   end,
			Status:      model.PayCycleStatusExecuted,
		})
	}
	next := lastEnd.AddDate(0, 0, 14)
	g.store.AddPayCycle(model.PayCycle{
		PayCycleID:  uuid.New().String(),
		CompanyID:   g.companyID,
		PeriodStart: lastEnd.AddDate(0, 0, 1),
		PeriodEnd:   next,
		Status:      model.PayCycleStatusScheduled,
	})
}

// seedWorkforce 工作日 8 小时班次，上下班时间带少量抖动
func (g *generator) seedWorkforce(n, days int) {
	payTypes := []string{model.PayTypeHourly, model.PayTypeHourly, model.PayTypeDaily, model.PayTypeYearly}

	for i := 0; i < n; i++ {
		payType := g.faker.RandomString(payTypes)
		emp := model.Employee{
			EmployeeID: uuid.New().String(),
			CompanyID:  g.companyID,
			Name:       g.faker.Name(),
			PayType:    payType,
			PayRate:    g.payRate(payType),
		}
		g.store.AddEmployee(emp)
		g.employeeIDs = append(g.employeeIDs, emp.EmployeeID)

		startHour := g.faker.IntRange(8, 10)
		for d := days; d >= 1; d-- {
			date := g.today.AddDate(0, 0, -d)
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
			in := date.Add(time.Duration(startHour)*time.Hour + g.jitter())
			out := in.Add(8*time.Hour + g.jitter())
			g.addEntry(emp.EmployeeID, date, in, out)
		}
	}
}

// injectOutliers 注入凌晨打卡、超长班次、周末打卡等异常记录
func (g *generator) injectOutliers(n int) int {
	if len(g.employeeIDs) == 0 {
		return 0
	}
	for i := 0; i < n; i++ {
		empID := g.employeeIDs[g.faker.IntRange(0, len(g.employeeIDs)-1)]
		date := g.today.AddDate(0, 0, -g.faker.IntRange(1, 14))

		var in, out time.Time
		switch i % 3 {
		case 0: // 凌晨上班、超长班次
			in = date.Add(time.Duration(g.faker.IntRange(1, 3)) * time.Hour)
			out = in.Add(time.Duration(g.faker.IntRange(14, 16)) * time.Hour)
		case 1: // 不足一小时
			in = date.Add(time.Duration(g.faker.IntRange(11, 14)) * time.Hour)
			out = in.Add(time.Duration(g.faker.IntRange(10, 40)) * time.Minute)
		default: // 周末深夜
			for date.Weekday() != time.Saturday {
				date = date.AddDate(0, 0, -1)
			}
			in = date.Add(23 * time.Hour)
			out = date.Add(23*time.Hour + 50*time.Minute)
		}
		g.addEntry(empID, date, in, out)
	}
	return n
}

func (g *generator) addEntry(employeeID string, date, in, out time.Time) {
	g.store.AddTimeEntry(model.TimeEntry{
		TimeEntryID: uuid.New().String(),
		EmployeeID:  employeeID,
		CompanyID:   g.companyID,
		EntryDate:   date,
		ClockIn:     &in,
		ClockOut:    &out,
	})
	g.entries++
}

// jitter ±15 分钟
func (g *generator) jitter() time.Duration {
	return time.Duration(g.faker.IntRange(-15, 15)) * time.Minute
}

// payRate 按计薪方式生成费率（最小货币单位）
func (g *generator) payRate(payType string) int64 {
	switch payType {
	case model.PayTypeYearly:
		return int64(g.faker.IntRange(4_000_000, 12_000_000))
	case model.PayTypeDaily:
		return int64(g.faker.IntRange(15_000, 40_000))
	default:
		return int64(g.faker.IntRange(1_800, 6_000))
	}
}
