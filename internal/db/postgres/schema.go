// Package postgres: schema.go содержит SQL-миграции.
// Миграции встроены в код для упрощения деплоя и применяются RunMigrations по порядку.
package postgres

// Schema: полный список миграций сервиса.
var Schema = []Migration{
	{1, migration001Users},
	{2, migration002Birds},
	{3, migration003Collection},
	{4, migration004Nearby},
	{5, migration005ActivityDiscover},
	{6, migration006Subscriptions},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    username VARCHAR(150) UNIQUE NOT NULL,
    first_name VARCHAR(150) NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL DEFAULT '',
    date_of_birth DATE,
    location VARCHAR(255) NOT NULL DEFAULT '',
    profile_image VARCHAR(500) NOT NULL DEFAULT '',
    is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    is_staff BOOLEAN NOT NULL DEFAULT FALSE,
    google_id VARCHAR(255) NOT NULL DEFAULT '',
    apple_id VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS otps (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    code VARCHAR(6) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    is_used BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_otps_email ON otps(email, created_at DESC);
CREATE TABLE IF NOT EXISTS login_attempts (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    attempted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_login_attempts_email ON login_attempts(email, attempted_at DESC);
`

var migration002Birds = `
CREATE TABLE IF NOT EXISTS birds (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    scientific_name VARCHAR(255) NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    image_url VARCHAR(500) NOT NULL DEFAULT '',
    rarity CHAR(1) NOT NULL DEFAULT 'C' CHECK (rarity IN ('S','A','B','C')),
    conservation_status VARCHAR(2) NOT NULL DEFAULT 'DD',
    weight_range VARCHAR(50) NOT NULL DEFAULT '',
    wingspan_range VARCHAR(50) NOT NULL DEFAULT '',
    length_range VARCHAR(50) NOT NULL DEFAULT '',
    kingdom VARCHAR(100) NOT NULL DEFAULT 'Animalia',
    phylum VARCHAR(100) NOT NULL DEFAULT 'Chordata',
    bird_class VARCHAR(100) NOT NULL DEFAULT 'Aves',
    bird_order VARCHAR(100) NOT NULL DEFAULT '',
    family VARCHAR(100) NOT NULL DEFAULT '',
    habitat TEXT NOT NULL DEFAULT '',
    behavior TEXT NOT NULL DEFAULT '',
    feeding_habits TEXT NOT NULL DEFAULT '',
    breeding_info TEXT NOT NULL DEFAULT '',
    migration_pattern TEXT NOT NULL DEFAULT '',
    sound_description TEXT NOT NULL DEFAULT '',
    range_map_url VARCHAR(500) NOT NULL DEFAULT '',
    global_distribution TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_birds_name_lower ON birds((LOWER(name)));
CREATE INDEX IF NOT EXISTS idx_birds_rarity ON birds(rarity);
CREATE TABLE IF NOT EXISTS bird_images (
    id BIGSERIAL PRIMARY KEY,
    bird_id BIGINT NOT NULL REFERENCES birds(id) ON DELETE CASCADE,
    image_url VARCHAR(500) NOT NULL,
    is_primary BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS bird_sounds (
    id BIGSERIAL PRIMARY KEY,
    bird_id BIGINT NOT NULL REFERENCES birds(id) ON DELETE CASCADE,
    sound_url VARCHAR(500) NOT NULL,
    sound_type VARCHAR(100) NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS similar_birds (
    id BIGSERIAL PRIMARY KEY,
    bird_id BIGINT NOT NULL REFERENCES birds(id) ON DELETE CASCADE,
    similar_to_id BIGINT NOT NULL REFERENCES birds(id) ON DELETE CASCADE,
    similarity_score DOUBLE PRECISION NOT NULL CHECK (similarity_score BETWEEN 0 AND 100),
    UNIQUE (bird_id, similar_to_id)
);
CREATE TABLE IF NOT EXISTS bird_categories (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) UNIQUE NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image_url VARCHAR(500) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS bird_category_assignments (
    bird_id BIGINT NOT NULL REFERENCES birds(id) ON DELETE CASCADE,
    category_id BIGINT NOT NULL REFERENCES bird_categories(id) ON DELETE CASCADE,
    PRIMARY KEY (bird_id, category_id)
);
CREATE TABLE IF NOT EXISTS identifications (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    bird_id BIGINT REFERENCES birds(id) ON DELETE SET NULL,
    image_url VARCHAR(500) NOT NULL DEFAULT '',
    sound_url VARCHAR(500) NOT NULL DEFAULT '',
    identified_species VARCHAR(255) NOT NULL,
    scientific_name VARCHAR(255) NOT NULL DEFAULT '',
    confidence_level DOUBLE PRECISION NOT NULL CHECK (confidence_level BETWEEN 0 AND 100),
    provider VARCHAR(32) NOT NULL,
    ai_response JSONB NOT NULL DEFAULT '{}',
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    location_name VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_identifications_user ON identifications(user_id, created_at DESC);
`

var migration003Collection = `
CREATE TABLE IF NOT EXISTS collection_entries (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    bird_id BIGINT NOT NULL REFERENCES birds(id) ON DELETE CASCADE,
    location VARCHAR(255) NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    notes TEXT NOT NULL DEFAULT '',
    is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
    is_featured BOOLEAN NOT NULL DEFAULT FALSE,
    date_added TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, bird_id)
);
CREATE INDEX IF NOT EXISTS idx_collection_user ON collection_entries(user_id, date_added DESC);
CREATE TABLE IF NOT EXISTS streaks (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (current_streak >= 0 AND current_streak <= longest_streak)
);
CREATE TABLE IF NOT EXISTS rarity_scores (
    user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    s_count INTEGER NOT NULL DEFAULT 0,
    a_count INTEGER NOT NULL DEFAULT 0,
    b_count INTEGER NOT NULL DEFAULT 0,
    c_count INTEGER NOT NULL DEFAULT 0,
    total_score INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_rarity_scores_total ON rarity_scores(total_score);
CREATE TABLE IF NOT EXISTS achievements (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    achievement_type VARCHAR(20) NOT NULL,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    value INTEGER NOT NULL DEFAULT 0,
    icon_url VARCHAR(500) NOT NULL DEFAULT '',
    date_achieved TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, achievement_type, title)
);
`

var migration004Nearby = `
CREATE TABLE IF NOT EXISTS spots (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
    longitude DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
    created_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_spots_lat_lon ON spots(latitude, longitude);
CREATE TABLE IF NOT EXISTS sightings (
    id BIGSERIAL PRIMARY KEY,
    spot_id BIGINT NOT NULL REFERENCES spots(id) ON DELETE CASCADE,
    bird_id BIGINT NOT NULL REFERENCES birds(id) ON DELETE CASCADE,
    sighting_date DATE NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    image_url VARCHAR(500) NOT NULL DEFAULT '',
    reported_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sightings_spot ON sightings(spot_id, sighting_date DESC);
CREATE INDEX IF NOT EXISTS idx_sightings_verified ON sightings(is_verified, sighting_date);
`

var migration005ActivityDiscover = `
CREATE TABLE IF NOT EXISTS activities (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    activity_type VARCHAR(32) NOT NULL,
    bird_id BIGINT REFERENCES birds(id) ON DELETE SET NULL,
    description TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    location_name VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    content TEXT NOT NULL,
    image_url VARCHAR(500) NOT NULL DEFAULT '',
    category VARCHAR(50) NOT NULL,
    author VARCHAR(100) NOT NULL,
    preview_text TEXT NOT NULL DEFAULT '',
    read_time INTEGER NOT NULL DEFAULT 0,
    tags VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category, created_at DESC);
CREATE TABLE IF NOT EXISTS bookmarks (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    article_id BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, article_id)
);
`

var migration006Subscriptions = `
CREATE TABLE IF NOT EXISTS subscription_plans (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    stripe_price_id VARCHAR(100) NOT NULL,
    price_cents BIGINT NOT NULL,
    billing_interval VARCHAR(20) NOT NULL CHECK (billing_interval IN ('month','year')),
    features JSONB NOT NULL DEFAULT '[]',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS user_subscriptions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    plan_id BIGINT NOT NULL REFERENCES subscription_plans(id) ON DELETE RESTRICT,
    stripe_customer_id VARCHAR(100) NOT NULL,
    stripe_subscription_id VARCHAR(100) NOT NULL,
    status VARCHAR(32) NOT NULL,
    current_period_start TIMESTAMPTZ NOT NULL,
    current_period_end TIMESTAMPTZ NOT NULL,
    cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_user_subscriptions_stripe_sub ON user_subscriptions(stripe_subscription_id);
CREATE INDEX IF NOT EXISTS idx_user_subscriptions_customer ON user_subscriptions(stripe_customer_id);
CREATE TABLE IF NOT EXISTS payments (
    id BIGSERIAL PRIMARY KEY,
    subscription_id BIGINT NOT NULL REFERENCES user_subscriptions(id) ON DELETE CASCADE,
    stripe_payment_intent_id VARCHAR(100) NOT NULL DEFAULT '',
    amount_cents BIGINT NOT NULL,
    status VARCHAR(20) NOT NULL CHECK (status IN ('succeeded','failed','pending')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_subscription ON payments(subscription_id, created_at DESC);
`
