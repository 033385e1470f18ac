package notify

import "fmt"

// WelcomeSubject is used for the signup notification.
const WelcomeSubject = "Welcome to GPUOptimizer - Start Saving Now!"

// WelcomeBody renders the onboarding email with the customer's API key
// and agent setup instructions.
func WelcomeBody(apiKey string) string {
	return fmt.Sprintf(`Hi there!

Welcome to GPUOptimizer! You're now part of the AI teams saving thousands monthly on GPU costs.

Your API Key: %s

Quick Setup (2 minutes):

1. Download the agent:
   curl -o gpu_optimizer.py https://gpuoptimizer.com/agent.py

2. Set your API key:
   export GPU_OPTIMIZER_API_KEY="%s"

3. Run the monitor:
   python3 gpu_optimizer.py

That's it! You'll start seeing savings reports within 24 hours.

Your Free Tier Includes:
- Monitor up to 2 GPUs
- Weekly optimization reports

Questions? Just reply to this email.

The GPUOptimizer Team
`, apiKey, apiKey)
}

// UpgradeSubject is used for the payment-completion notification.
const UpgradeSubject = "Your GPUOptimizer upgrade is live"

// UpgradeBody renders the upgrade confirmation email.
func UpgradeBody(planName string) string {
	return fmt.Sprintf(`Hi there!

Your upgrade to the %s is now active. Higher GPU limits and priority optimization are enabled on your account effective immediately.

Thanks for growing with us.

The GPUOptimizer Team
`, planName)
}
