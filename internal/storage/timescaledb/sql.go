package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('recharge_daily', 'day', if_not_exists => true, migrate_data => true);`

const createMonthlyViewSQL = `CREATE MATERIALIZED VIEW IF NOT EXISTS recharge_monthly
WITH (timescaledb.continuous) AS
SELECT
    run_id,
    time_bucket(INTERVAL '1 month', day) AS month,
    sum(mean) AS mean,
    sum(low) AS low,
    sum(median) AS median,
    sum(high) AS high,
    count(mean) AS days
FROM recharge_daily
GROUP BY run_id, month
WITH NO DATA;`

const createIndexesSQL = `CREATE INDEX IF NOT EXISTS recharge_daily_run_idx ON recharge_daily (run_id, day DESC);`
