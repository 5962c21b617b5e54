// Package help holds the built-in quick start printed by `secondlook quickstart`.
package help

const ColdstartYAML = `# secondlook Quick Start

setup:
  config: "~/.secondlook.yaml (optional; every field has a default)"
  env:
    NESSIE_API_KEY: "Capital One Nessie key (bank sync and history)"
    NESSIE_ACCOUNT_ID: "account that purchases are recorded against"
    GEMINI_API_KEY: "Gemini key (duplicate purchase analysis)"
    SECONDLOOK_DB: "SQLite file for analyses, syncs and budget"

commands:
  watch_a_store: |
    secondlook watch --url "https://www.amazon.com/gp/cart/view.html"

  watch_headless: |
    secondlook watch --url "https://shop.example.com/cart" --headless

  inspect_page: |
    secondlook inspect --url "https://shop.example.com/checkout"
    secondlook inspect --file cart.html --url "https://www.amazon.com/cart"

  inspect_many: |
    secondlook inspect --urls "url1,url2,url3" --workers 4 --format json

  budget: |
    secondlook budget set --salary 4200 --rent 1500 --loans 300 --savings 500
    secondlook budget show

  bank_history: |
    secondlook history -n 20

  extension_api: |
    secondlook serve --addr :8787

  stored_results: |
    secondlook db analyses
    secondlook db analysis <id-prefix>
    secondlook db syncs
    secondlook db sessions

page_states:
  checkout: "cart or checkout page; totals are scraped and analysed"
  confirmation: "order placed; the purchase is synced to the bank once"
  other: "ignored"

behavior:
  - "Confirmation beats checkout when a page looks like both"
  - "One bank sync per checkout visit; re-entering checkout re-arms it"
  - "Missing bank or AI keys degrade to a warning, never a crash"
  - "Analyses are stored even when the bank or AI is unavailable"

api:
  health: "GET /api/v1/health"
  actions: "POST /api/v1/actions {action: getNessieData|askGemini|recordPurchase}"
  inspect: "POST /api/v1/inspect {url, html}"
  history: "GET /api/v1/history?limit=N"
  budget: "GET|PUT /api/v1/budget"
  analyses: "GET /api/v1/analyses, GET /api/v1/analyses/{id}"

exit_codes:
  - "0: success"
  - "1: runtime error or partial batch failure"
  - "2: bad configuration"
`
