package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"Freelance-Autopilot/sdk/go/autopilot"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "autopilotd base URL")
	user := flag.String("user", "user_100", "freelancer user id")
	execute := flag.Bool("execute-bids", false, "submit every drafted bid")
	flag.Parse()

	client, err := autopilot.NewClient(*addr, *user, nil)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := client.Stats(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("liquidity=%s runway=%.1f days health=%d tax due=%s\n",
		stats.Liquidity, stats.RunwayDays, stats.HealthScore, stats.Tax.EstimatedTaxDue)

	result, err := client.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, line := range result.Logs {
		fmt.Println(line)
	}
	for _, entry := range result.Actions {
		fmt.Printf("%-12s %s\n", entry.Agent, entry.Type)
		if *execute && entry.Type == "create_bid" {
			exec, err := client.Execute(ctx, entry)
			if err != nil {
				log.Printf("execute bid: %v", err)
				continue
			}
			fmt.Printf("  submitted bid %s\n", exec.Bid)
		}
	}
}
